// Command playdemo loads a .din soundtrack, starts one flow, and
// plays it through the system's audio output until interrupted.
// Grounded on cmd/play_mml's flag-driven CLI shape, wired to
// secondmusic.Engine instead of mmlfm.Player.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/cbegin/secondmusic-go"
	"github.com/cbegin/secondmusic-go/hostio/ebitendriver"
	"github.com/cbegin/secondmusic-go/hostio/oggdelegate"
	"github.com/cbegin/secondmusic-go/internal/fader"
	"github.com/cbegin/secondmusic-go/internal/parse/source"
	"github.com/cbegin/secondmusic-go/internal/posfloat"
	"github.com/cbegin/secondmusic-go/internal/sound"
)

func main() {
	var (
		dinPath    = flag.String("file", "", "path to a .din soundtrack source file (required)")
		soundsDir  = flag.String("sounds", ".", "directory containing the soundtrack's .ogg files")
		flowName   = flag.String("flow", "", "flow to start (required)")
		sampleRate = flag.Int("sample-rate", 48000, "output sample rate")
		fadeIn     = flag.Float64("fade-in", 1.0, "seconds to fade the flow in over")
		volume     = flag.Float64("volume", 1.0, "target flow volume, 0..1")
	)
	flag.Parse()

	if *dinPath == "" || *flowName == "" {
		fmt.Fprintln(os.Stderr, "usage: playdemo -file song.din -flow explore [-sounds dir] [-sample-rate 48000]")
		os.Exit(2)
	}

	src, err := os.ReadFile(*dinPath)
	if err != nil {
		log.Fatal(err)
	}
	soundtrack, err := source.Parse(string(src))
	if err != nil {
		log.Fatalf("parsing %s: %v", *dinPath, err)
	}
	if _, ok := soundtrack.Flows[*flowName]; !ok {
		log.Fatalf("soundtrack %s has no flow named %q", *dinPath, *flowName)
	}

	delegate := &oggdelegate.Delegate{
		Root: *soundsDir,
		Warn: func(message string) { log.Println("warning:", message) },
	}

	engine := secondmusic.NewEngine(delegate, sound.Stereo, posfloat.MustNew(float32(*sampleRate)))
	engine.ReplaceSoundtrack(soundtrack)

	driver, err := ebitendriver.New(*sampleRate, engine)
	if err != nil {
		log.Fatal(err)
	}
	defer driver.Stop()

	engine.StartFlow(*flowName, posfloat.MustNew(float32(*volume)), posfloat.MustNew(float32(*fadeIn)), fader.Linear)
	driver.Play()

	fmt.Printf("playing flow %q from %s; press Ctrl+C to stop\n", *flowName, *dinPath)

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-interrupt:
			engine.FadeFlowOut(*flowName, posfloat.One, fader.Linear)
			time.Sleep(1200 * time.Millisecond)
			return
		case <-ticker.C:
			stats := engine.Stats()
			fmt.Printf("voices=%d queued=%d precaching=%d\n", stats.VoicesActive, stats.QueuedSounds, stats.PrecacheQueue)
		}
	}
}
