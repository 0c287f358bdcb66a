package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"tagscan/kafka"
	"tagscan/mqtt"
	"tagscan/poll"
	"tagscan/resolver"
	"tagscan/session"
	"tagscan/valkey"
)

var watchCmd = &cobra.Command{
	Use:   "watch <address|name> <tag.path>",
	Short: "Poll one tag and print samples until interrupted",
	Long: `Watch resolves the tag path case-insensitively against the stored
tag tree, connects to the controller, and polls the tag at the
configured interval. Samples are printed as they arrive and published
to any configured MQTT, Valkey, and Kafka endpoints. Ctrl-C stops the
poll and prints the retained sample history.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		ctrl, err := findController(cmd.Context(), st, args[0])
		if err != nil {
			return err
		}
		roots, err := st.TagSet(cmd.Context(), ctrl.ID)
		if err != nil {
			return err
		}
		canonical, _, err := resolver.ResolvePath(roots, args[1])
		if err != nil {
			return err
		}

		sess := session.NewLogixSession(ctrl.Address, ctrl.Slot)
		if err := sess.Open(cmd.Context()); err != nil {
			return err
		}
		defer sess.Close()

		controllerName := ctrl.Name
		if controllerName == "" {
			controllerName = ctrl.Address
		}

		mqttMgr := mqtt.NewManager()
		mqttMgr.LoadFromConfig(cfg.MQTT)
		valkeyMgr := valkey.NewManager()
		valkeyMgr.LoadFromConfig(cfg.Valkey)
		kafkaMgr := kafka.NewManager()
		kafkaMgr.LoadFromConfig(cfg.Kafka)

		go mqttMgr.StartAll()
		go valkeyMgr.StartAll()
		kafkaMgr.ConnectEnabled()
		defer func() {
			mqttMgr.StopAll()
			valkeyMgr.StopAll()
			kafkaMgr.StopAll()
		}()

		poller := poll.New(sess, canonical,
			poll.WithInterval(cfg.Poll.Interval),
			poll.WithHistoryDepth(cfg.Poll.HistoryDepth))
		poller.Subscribe(func(s poll.Sample) {
			printSample(canonical, s)

			var value interface{}
			var typeName string
			if s.Value != nil {
				value = s.Value.Go
				typeName = s.Value.TypeName
			}
			mqttMgr.Publish(controllerName, canonical, typeName, value, false)
			valkeyMgr.Publish(controllerName, canonical, typeName, value)
			kafkaMgr.Publish(controllerName, canonical, typeName, value, false)
		})

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(sigs)

		fmt.Printf("watching %s on %s (interval %v), Ctrl-C to stop\n",
			canonical, ctrl.Address, cfg.Poll.Interval)
		logEvent("watch started: %s on %s", canonical, ctrl.Address)
		if err := poller.Start(ctx); err != nil {
			return err
		}

		select {
		case <-sigs:
			poller.Stop()
		case <-poller.Done():
		}

		history := poller.History()
		fmt.Printf("\nlast %d samples:\n", len(history))
		for _, s := range history {
			printSample(canonical, s)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func printSample(path string, s poll.Sample) {
	stamp := s.Time.Format("15:04:05.000")
	if s.Err != nil {
		fmt.Printf("%s  %s  read error: %v\n", stamp, path, s.Err)
		return
	}
	fmt.Printf("%s  %s = %v (%s)\n", stamp, path, s.Value.Go, s.Value.TypeName)
}
