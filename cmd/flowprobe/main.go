// flowprobe reads the base flow temperature once from the flow source in the
// room config, or from flags, to verify register and record settings.
package main

import (
	"flag"
	"log"

	"github.com/nergy-se/roomcontroller/pkg/config"
	"github.com/nergy-se/roomcontroller/pkg/flowsource"
)

func main() {
	configFile := flag.String("config", "", "room config file, flow_source is read from it")
	sourceType := flag.String("type", "modbus", "static, modbus or mbus")
	address := flag.String("addr", "", "tcp modbus address")
	slaveID := flag.Int("slave", 1, "modbus slave id")
	register := flag.Uint("inputreg", 0, "modbus input register")
	scale := flag.Float64("scale", 100, "divide the register value by scale")
	device := flag.String("device", "/dev/ttyAMA0", "mbus serial device")
	primaryAddress := flag.Int("primary", 1, "mbus primary address")
	record := flag.Int("record", 0, "mbus data record index")
	flag.Parse()

	fs := config.FlowSource{
		Type:           config.FlowSourceType(*sourceType),
		Address:        *address,
		SlaveID:        *slaveID,
		Register:       uint16(*register),
		Scale:          *scale,
		Device:         *device,
		PrimaryAddress: *primaryAddress,
		Record:         *record,
	}
	if *configFile != "" {
		cfg, err := config.Load(*configFile)
		if err != nil {
			log.Fatal(err)
		}
		fs = cfg.FlowSource
	}

	source, err := flowsource.New(fs)
	if err != nil {
		log.Fatal(err)
	}
	defer source.Close()

	v, err := source.FlowTemperature()
	if err != nil {
		log.Println("error was: ", err)
		return
	}
	log.Printf("flow temperature is: %.2f", v)
}
