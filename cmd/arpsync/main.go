package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"go-arpsync/arp"
	"go-arpsync/config"
	"go-arpsync/debug"
	"go-arpsync/engine"
	"go-arpsync/midi"
	"go-arpsync/theme"
	"go-arpsync/transport"
	"go-arpsync/tui"
)

const (
	inputQueueSize = 1024
	outboxSize     = 256
)

func main() {
	var (
		configPath = flag.String("config", "", "config file (default ~/.config/go-arpsync/config.json)")
		inMatch    = flag.String("in", "", "clock/note input port (substring match, empty = first port, none = off)")
		outMatch   = flag.String("out", "", "arp output port (substring match, empty = first port, none = off)")
		channel    = flag.Int("channel", 0, "arp output channel 1-16")
		speed      = flag.String("speed", "", "step multiplier: 1, 2, 1/2, x4 ...")
		mode       = flag.String("mode", "", "arp direction: up, down, updown")
		noSync     = flag.Bool("nosync", false, "ignore external clock pulses")
		rate       = flag.Int("rate", 0, "audio sample rate")
		block      = flag.Int("block", 0, "audio block size in frames")
		host       = flag.Bool("host", false, "drive blocks from a timer with a host playhead instead of the audio device")
		save       = flag.Bool("save", false, "write the effective config back to disk")
		debugLog   = flag.Bool("debug", false, "log to ~/.config/go-arpsync/debug.log")
	)
	flag.Parse()

	if *debugLog {
		if err := debug.Enable(); err != nil {
			fmt.Fprintf(os.Stderr, "debug log: %v\n", err)
		}
		defer debug.Disable()
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	// flags override the file
	if *inMatch != "" {
		cfg.Input.Match = *inMatch
	}
	if *outMatch != "" {
		cfg.Output.Match = *outMatch
	}
	if *channel != 0 {
		cfg.Output.Channel = *channel
	}
	if *speed != "" {
		cfg.Sync.Speed = *speed
	}
	if *mode != "" {
		cfg.Arp.Mode = *mode
	}
	if *noSync {
		cfg.Sync.Enabled = false
	}
	if *rate != 0 {
		cfg.Audio.SampleRate = *rate
	}
	if *block != 0 {
		cfg.Audio.BlockSize = *block
	}
	if err := cfg.Validate(); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	if *save {
		if err := saveConfig(cfg, *configPath); err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
	}

	palette, err := theme.LoadPalette(cfg.UI.Palette)
	if err != nil {
		debug.Log("main", "palette: %v, using default", err)
		palette = theme.Plasma
	}
	th := theme.New(palette)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Transport state and sync watchdog
	state := &transport.State{}
	watchdog := transport.NewWatchdog(state, cfg.WatchdogInterval(), cfg.Sync.MissedLimit)
	go watchdog.Run(ctx)

	// MIDI in (clock + notes) and arp out, both hot-plugged
	queue := midi.NewInputQueue(inputQueueSize)
	deviceMgr := midi.NewDeviceManager(cfg.Input.Match, cfg.Output.Match, queue)
	go deviceMgr.Run(ctx)

	outbox := arp.NewOutbox(outboxSize)
	go outbox.Run(ctx, deviceMgr.Send)
	voice := arp.NewVoice(outbox, cfg.ArpOptions())

	opts := engine.Options{
		Voice:     voice,
		State:     state,
		Watchdog:  watchdog,
		SeedTempo: cfg.Sync.SeedTempo,
	}

	var timerHost *engine.TimerHost
	if *host {
		timerHost = engine.NewTimerHost(queue, float64(cfg.Audio.SampleRate), cfg.Audio.BlockSize, 0)
		timerHost.SetPlaying(true)
		opts.PlayHead = timerHost.PlayHead()
	}

	eng := engine.New(opts)
	eng.SetSpeed(cfg.Speed())
	eng.SetSync(cfg.Sync.Enabled)

	meter := &tui.PeakMeter{}
	eng.Meters().Register(meter)
	defer eng.Meters().Unregister()

	if timerHost != nil {
		go timerHost.Run(ctx, eng)
	} else {
		sp, err := engine.NewSpeaker(cfg.Audio.SampleRate, cfg.Audio.BlockSize)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		sp.Play(engine.NewStreamer(eng, queue, sp.SampleRate(), 0))
		defer sp.Stop()
		debug.Log("main", "audio %d Hz, block %d (%v)", cfg.Audio.SampleRate, cfg.Audio.BlockSize, sp.BufferDuration())
	}

	fmt.Println("go-arpsync")
	fmt.Println("Waiting for MIDI clock - ports are detected automatically")
	fmt.Println("")

	m := tui.NewModel(eng, deviceMgr.Events(), th, meter)
	p := tea.NewProgram(m, tea.WithAltScreen())

	if _, err := p.Run(); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Load()
	}
	return config.LoadFrom(path)
}

func saveConfig(cfg *config.Config, path string) error {
	if path == "" {
		return cfg.Save()
	}
	return cfg.SaveTo(path)
}
