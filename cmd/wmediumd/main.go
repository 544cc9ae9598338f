// Command wmediumd simulates the wireless medium for mac80211_hwsim
// radios.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/apex/log"
	"github.com/apex/log/handlers/text"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"

	"github.com/bcopeland/wmediumd"
)

// Version is the daemon version.
const Version = "0.4.0"

// NewVhostDevice is the seam to the external vhost-user device
// library; builds that link one assign it before main runs.
var NewVhostDevice func(socketPath string, logger wmediumd.Logger) (wmediumd.VirtioDevice, error)

func main() {
	help := pflag.BoolP("help", "h", false, "Display help text.")
	showVersion := pflag.BoolP("version", "V", false, "Print the version and exit.")
	configPath := pflag.StringP("config", "c", "", "Configuration file (required).")
	perPath := pflag.StringP("per", "x", "", "Packet-error-rate table file.")
	logLevel := pflag.IntP("log-level", "l", 6, "Log level 0..7.")
	timeSock := pflag.StringP("time-control", "t", "", "External time-control socket.")
	vhostSock := pflag.StringP("vhost-user", "u", "", "vhost-user socket.")
	apiSock := pflag.StringP("api", "a", "", "API socket.")
	forceNetlink := pflag.BoolP("netlink", "n", false, "Attach to netlink even with vhost-user.")
	pcapPath := pflag.StringP("pcap", "p", "", "Capture delivered frames to a PCAP file.")
	metricsAddr := pflag.StringP("metrics", "m", "", "Prometheus metrics listen address.")

	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: wmediumd -c FILE [options]\n\n")
		pflag.PrintDefaults()
	}
	pflag.Parse()

	if *help {
		pflag.Usage()
		return
	}
	if *showVersion {
		fmt.Printf("wmediumd %s\n", Version)
		return
	}
	if *configPath == "" {
		fmt.Fprintf(os.Stderr, "wmediumd: a configuration file is required\n")
		pflag.Usage()
		os.Exit(1)
	}

	log.SetHandler(text.New(os.Stderr))
	log.SetLevel(apexLevel(*logLevel))
	logger := log.Log

	cfg, err := wmediumd.LoadConfig(*configPath)
	if err != nil {
		log.WithError(err).Fatal("load configuration")
	}

	var per wmediumd.PERFunc
	if *perPath != "" {
		table, err := wmediumd.LoadPERTable(*perPath)
		if err != nil {
			log.WithError(err).Fatal("load PER table")
		}
		per = table.ErrorProb
	}

	mcfg := &wmediumd.MediumConfig{Logger: logger}

	if *metricsAddr != "" {
		reg := prometheus.NewRegistry()
		mcfg.Metrics = wmediumd.NewMetrics(reg)
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		go func() {
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
				log.WithError(err).Error("metrics listener")
			}
		}()
	}

	if *pcapPath != "" {
		capture, err := wmediumd.NewCapture(*pcapPath, logger)
		if err != nil {
			log.WithError(err).Fatal("open capture file")
		}
		defer capture.Close()
		mcfg.Capture = capture
	}

	medium, err := cfg.Build(mcfg, per)
	if err != nil {
		log.WithError(err).Fatal("build medium")
	}
	medium.StartStats()

	useVhost := *vhostSock != ""
	if useVhost {
		if NewVhostDevice == nil {
			log.Fatal("vhost-user transport is not built into this binary")
		}
		dev, err := NewVhostDevice(*vhostSock, logger)
		if err != nil {
			log.WithError(err).Fatal("vhost-user device")
		}
		medium.AttachVirtioDevice(dev)
	}

	if !useVhost || *forceNetlink {
		nt, err := wmediumd.DialHwsim(logger)
		if err != nil {
			log.WithError(err).Fatal("attach to " + wmediumd.HwsimFamilyName)
		}
		client := medium.AddClient(wmediumd.ClientNetlink, nt)
		go nt.Serve(medium, client)
	}

	if *apiSock != "" {
		server := wmediumd.NewAPIServer(medium, logger)
		go func() {
			if err := server.ListenAndServe(*apiSock); err != nil {
				log.WithError(err).Error("api listener")
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *timeSock != "" {
		controller := wmediumd.NewTimeController(medium, logger)
		go func() {
			if err := controller.ListenAndServe(*timeSock); err != nil {
				log.WithError(err).Error("time-control listener")
			}
		}()
		err = medium.RunVirtual(ctx)
	} else {
		err = medium.Run(ctx)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Fatal("event loop")
	}
}

// apexLevel maps the syslog-style 0..7 scale onto apex levels.
func apexLevel(level int) log.Level {
	switch {
	case level >= 7:
		return log.DebugLevel
	case level == 6:
		return log.InfoLevel
	case level >= 4:
		return log.WarnLevel
	default:
		return log.ErrorLevel
	}
}
