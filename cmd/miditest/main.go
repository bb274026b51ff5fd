package main

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"go-arpsync/clock"
	"go-arpsync/transport"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		return
	}

	switch os.Args[1] {
	case "list":
		listPorts()
	case "poll":
		pollDevices()
	case "monitor":
		monitorClock(arg(2, ""))
	case "send":
		sendClock(arg(2, ""), arg(3, "120"))
	default:
		usage()
	}
}

func arg(i int, def string) string {
	if len(os.Args) > i {
		return os.Args[i]
	}
	return def
}

func usage() {
	fmt.Println("MIDI Test Scripts")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  list                 - List all MIDI ports")
	fmt.Println("  poll                 - Poll for device changes")
	fmt.Println("  monitor [port]       - Print transport messages and clock tempo")
	fmt.Println("  send [port] [bpm]    - Send Start + clock at bpm until Ctrl+C, then Stop")
}

func listPorts() {
	fmt.Println("=== MIDI Input Ports ===")
	fmt.Println("(waiting up to 3 seconds...)")

	type result struct {
		ins  []drivers.In
		outs []drivers.Out
	}
	ch := make(chan result, 1)
	go func() {
		ins := midi.GetInPorts()
		outs := midi.GetOutPorts()
		ch <- result{ins: ins, outs: outs}
	}()

	select {
	case r := <-ch:
		for i, p := range r.ins {
			fmt.Printf("  %d: %s\n", i, p.String())
		}
		fmt.Println("\n=== MIDI Output Ports ===")
		for i, p := range r.outs {
			fmt.Printf("  %d: %s\n", i, p.String())
		}
	case <-time.After(3 * time.Second):
		fmt.Println("\nTIMEOUT! CoreMIDI is hung.")
		fmt.Println("Fix: sudo killall coreaudiod midiserver")
	}
}

func findIn(match string) drivers.In {
	match = strings.ToLower(match)
	for _, p := range midi.GetInPorts() {
		if strings.Contains(strings.ToLower(p.String()), match) {
			return p
		}
	}
	return nil
}

func findOut(match string) drivers.Out {
	match = strings.ToLower(match)
	for _, p := range midi.GetOutPorts() {
		if strings.Contains(strings.ToLower(p.String()), match) {
			return p
		}
	}
	return nil
}

func interrupted() <-chan os.Signal {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	return sig
}

// monitorClock prints Start/Stop/Continue and a smoothed BPM once per beat
func monitorClock(match string) {
	in := findIn(match)
	if in == nil {
		fmt.Printf("No input port matching %q\n", match)
		return
	}
	fmt.Printf("Listening on %s. Ctrl+C to exit.\n", in.String())

	avg := clock.NewAverager(120)
	var last time.Time
	var lastPulse atomic.Int64
	pulses := 0

	stop, err := midi.ListenTo(in, func(msg midi.Message, timestampms int32) {
		now := time.Now()
		switch msg.Type() {
		case midi.TimingClockMsg:
			if !last.IsZero() {
				interval := now.Sub(last).Microseconds()
				// microsecond "samples" at 1 MHz
				bpm := avg.AddAndAverage(clock.TempoSample(interval, 1e6))
				pulses++
				if pulses%clock.PulsesPerBeat == 0 {
					fmt.Printf("[%s] %6.2f bpm\n", now.Format("15:04:05.000"), bpm)
				}
			}
			last = now
			lastPulse.Store(now.UnixNano())
		case midi.StartMsg, midi.StopMsg, midi.ContinueMsg:
			fmt.Printf("[%s] %s\n", now.Format("15:04:05.000"), msg)
			pulses = 0
		}
	}, midi.UseTimeCode())
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer stop()

	// same silence budget as the arpsync watchdog
	timeout := transport.DefaultWatchdogInterval * (transport.DefaultMissedLimit + 1)
	ticker := time.NewTicker(transport.DefaultWatchdogInterval)
	defer ticker.Stop()
	sig := interrupted()
	lost := true

	for {
		select {
		case <-sig:
			return
		case now := <-ticker.C:
			seen := lastPulse.Load()
			silent := seen == 0 || now.Sub(time.Unix(0, seen)) > timeout
			if silent && !lost {
				fmt.Printf("[%s] clock lost\n", now.Format("15:04:05.000"))
			}
			lost = silent
		}
	}
}

// sendClock plays the role of a master clock for testing sync
func sendClock(match, bpmArg string) {
	bpm, err := strconv.ParseFloat(bpmArg, 64)
	if err != nil || bpm <= 0 {
		fmt.Printf("Bad tempo %q\n", bpmArg)
		return
	}
	out := findOut(match)
	if out == nil {
		fmt.Printf("No output port matching %q\n", match)
		return
	}

	send, err := midi.SendTo(out)
	if err != nil {
		fmt.Printf("Error opening port: %v\n", err)
		return
	}

	period := time.Duration(float64(time.Minute) / bpm / clock.PulsesPerBeat)
	fmt.Printf("Sending clock at %.2f bpm (%v per pulse) to %s. Ctrl+C to stop.\n", bpm, period, out.String())

	send(midi.Start())
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	sig := interrupted()

	for {
		select {
		case <-ticker.C:
			if err := send(midi.TimingClock()); err != nil {
				fmt.Printf("Error: %v\n", err)
				return
			}
		case <-sig:
			send(midi.Stop())
			fmt.Println("Stopped")
			return
		}
	}
}

func pollDevices() {
	fmt.Println("Polling for device changes every 2 seconds...")
	fmt.Println("Connect/disconnect a clock source to test. Ctrl+C to exit.")

	lastIn := ""
	lastOut := ""

	for {
		ins := midi.GetInPorts()
		outs := midi.GetOutPorts()

		var inNames, outNames []string
		for _, p := range ins {
			inNames = append(inNames, p.String())
		}
		for _, p := range outs {
			outNames = append(outNames, p.String())
		}

		currentIn := strings.Join(inNames, ",")
		currentOut := strings.Join(outNames, ",")

		if currentIn != lastIn || currentOut != lastOut {
			fmt.Printf("\n[%s] Device change detected!\n", time.Now().Format("15:04:05"))
			fmt.Printf("  Inputs: %v\n", inNames)
			fmt.Printf("  Outputs: %v\n", outNames)

			lastIn = currentIn
			lastOut = currentOut
		}

		time.Sleep(2 * time.Second)
	}
}
