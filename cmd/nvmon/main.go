package main

import (
	"flag"
	"log"
	"os"

	"github.com/robotalks/nv.go/pkg/mqtt"
	"github.com/robotalks/nv.go/pkg/telemetry"
)

var (
	mqttURL = "mqtt://localhost:1883/nv/"
	device  = "+"
)

func init() {
	if val := os.Getenv("NV_MQTT_URL"); val != "" {
		mqttURL = val
	}
	flag.StringVar(&mqttURL, "mqtt", mqttURL, "MQTT broker URL.")
	flag.StringVar(&device, "device", device, "Device to watch, + for all.")
}

func main() {
	flag.Parse()
	log.SetFlags(log.Lmicroseconds)

	q, err := mqtt.NewQueueFromURL(mqttURL)
	if err != nil {
		log.Fatalln(err)
	}
	if token := q.Connect(); token.Wait() && token.Error() != nil {
		log.Fatalln(token.Error())
	}

	q.Sub(device+"/status", func(topic string, payload []byte) {
		st, err := telemetry.Decode(payload)
		if err != nil {
			log.Printf("%s: bad status: %v", topic, err)
			return
		}
		log.Printf("%s: %s", topic, st.String())
	})
	<-(chan struct{})(nil)
}
