// Tagscan - Allen-Bradley Logix tag toolkit
//
// Scans ControlLogix/CompactLogix controllers over EtherNet/IP, stores
// the resolved tag structures, exports them, and republishes live
// values via MQTT, Valkey, and Kafka.
package main

import (
	"os"
)

// Version is set at build time via -ldflags
var Version = "dev"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
