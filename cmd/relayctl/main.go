package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/immersion-se/controller/pkg/modbusclient"
	"github.com/immersion-se/controller/pkg/relay"
	"github.com/immersion-se/controller/pkg/relay/modbusrelay"
	"github.com/immersion-se/controller/pkg/relay/shelly"
)

func main() {
	shellyURL := flag.String("shelly", "", "shelly base url, ex http://192.168.1.20")
	address := flag.String("addr", "", "tcp modbus address")
	slaveID := flag.Int("slave", 1, "modbus slave id")
	coil := flag.Int("coil", 0, "modbus relay coil")
	timerreg := flag.Int("timerreg", 1, "modbus holding register for the auto off timer in seconds")

	seconds := flag.Int("on", 0, "turn relay on for this many seconds")
	off := flag.Bool("off", false, "turn relay off")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var sw relay.Switch
	switch {
	case *shellyURL != "":
		sw = shelly.New(*shellyURL)
	case *address != "":
		client := modbusclient.Dial(*address, byte(*slaveID), 10*time.Second)
		defer client.Close()
		r := modbusrelay.New(client, modbusrelay.Registers{Coil: uint16(*coil), Timer: uint16(*timerreg)})
		sw = r
		if !isFlagPassed("on") && !*off {
			state, err := r.State()
			if err != nil {
				log.Fatalln("error was: ", err)
			}
			fmt.Printf("on: %t timer: %.0fs\n", state.On, state.Timer)
			return
		}
	default:
		log.Fatalln("one of -shelly or -addr is required")
	}

	var err error
	switch {
	case *off:
		err = sw.TurnOff(ctx)
	case isFlagPassed("on"):
		until := time.Now().Add(time.Duration(*seconds) * time.Second)
		err = sw.TurnOn(ctx, until)
	default:
		log.Fatalln("one of -on or -off is required")
	}
	if err != nil {
		log.Fatalln("error was: ", err)
	}
	log.Println("ok")
}

func isFlagPassed(name string) bool {
	found := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}
