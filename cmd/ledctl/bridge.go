package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/srg/lednet/internal/device"
	"github.com/srg/lednet/internal/mqttbridge"
)

// dialMQTT connects to the broker. Tests replace it with a fake client.
var dialMQTT = mqttbridge.Dial

func newBridgeCmd() *cobra.Command {
	var broker, prefix string
	cmd := &cobra.Command{
		Use:   "bridge [address...]",
		Short: "Mirror lamps to an MQTT broker",
		Long: `Publish lamp state to MQTT and accept JSON commands until interrupted.

Without addresses every lamp remembered by 'ledctl scan' is bridged.

Topics:
  <prefix>/bridge/state   online / offline
  <prefix>/<lamp>/state   lamp state JSON (retained)
  <prefix>/<lamp>/set     {"state":"ON","color":{"r":255,"g":0,"b":0},"brightness":128}`,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer func() { err = errors.Join(err, a.close()) }()

			mcfg := a.cfg.MQTT
			if broker != "" {
				mcfg.Broker = broker
			}
			if prefix != "" {
				mcfg.TopicPrefix = prefix
			}
			if mcfg.Broker == "" {
				return fmt.Errorf("no MQTT broker configured: use --broker or mqtt.broker in the config file")
			}

			addresses := args
			if len(addresses) == 0 && a.store != nil {
				recs, err := a.store.ListLamps()
				if err != nil {
					return err
				}
				for _, r := range recs {
					addresses = append(addresses, r.Address)
				}
			}
			if len(addresses) == 0 {
				return fmt.Errorf("no lamps to bridge: pass addresses or run 'ledctl scan' first")
			}

			client, err := dialMQTT(mqttbridge.Config{
				Broker:      mcfg.Broker,
				ClientID:    mcfg.ClientID,
				Username:    mcfg.Username,
				Password:    mcfg.Password,
				TopicPrefix: mcfg.TopicPrefix,
				QoS:         byte(mcfg.QoS),
			}, a.logger)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			b := mqttbridge.NewBridge(client, mcfg.TopicPrefix, a.logger)
			b.SetCommandTimeout(a.cfg.ConnectTimeout + a.cfg.StateQueryTimeout)
			if err := b.Start(ctx); err != nil {
				client.Disconnect()
				return err
			}

			devices := make([]*device.Device, 0, len(addresses))
			for _, addr := range addresses {
				dev := a.device(addr)
				devices = append(devices, dev)
				b.Add(dev)
			}
			fmt.Fprintf(a.out, "Bridging %d lamp(s) to %s under %q, Ctrl+C to stop\n", len(devices), mcfg.Broker, mcfg.TopicPrefix)

			<-ctx.Done()

			b.Stop()
			for _, dev := range devices {
				a.remember("", dev.CurrentState())
				err = errors.Join(err, dev.Close())
			}
			return err
		},
	}
	cmd.Flags().StringVar(&broker, "broker", "", "MQTT broker URL (overrides config)")
	cmd.Flags().StringVar(&prefix, "prefix", "", "Topic prefix (overrides config)")
	return cmd
}
