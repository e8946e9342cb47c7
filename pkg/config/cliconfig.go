package config

type CliConfig struct {
	ConfigFile string `default:"/etc/roomcontroller/config.yaml"`
	LogLevel   string `default:"info"`
	HTTPAddr   string `default:":8080"`

	MQTTUsername string
	MQTTPassword string

	// Run an embedded broker and use its inline client instead of connecting to mqtt_host.
	EmbeddedBroker     bool
	EmbeddedBrokerAddr string `default:":1883"`
}
