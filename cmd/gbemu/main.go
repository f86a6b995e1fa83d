package main

import (
	"flag"
	"fmt"
	"hash/crc32"
	"image"
	"image/png"
	"log"
	"os"
	"strings"
	"time"

	"github.com/kestrelbit/gbcore/internal/audiodev"
	"github.com/kestrelbit/gbcore/internal/cart"
	"github.com/kestrelbit/gbcore/internal/gameboy"
	"github.com/kestrelbit/gbcore/internal/ui"
)

type CLIFlags struct {
	ROMPath string
	BootROM string
	Scale   int
	Title   string
	SaveRAM bool // persist battery RAM next to ROM (.sav)
	Mute    bool

	// headless
	Headless bool
	Frames   int
	PNGOut   string
	Expect   string // expected framebuffer CRC32 hex (e.g., "1a2b3c4d")
}

func parseFlags() CLIFlags {
	var f CLIFlags
	flag.StringVar(&f.ROMPath, "rom", "", "path to ROM (.gb)")
	flag.StringVar(&f.BootROM, "bootrom", "", "optional boot ROM (256 bytes DMG or 2304 bytes CGB)")
	flag.IntVar(&f.Scale, "scale", 3, "window scale")
	flag.StringVar(&f.Title, "title", "gbemu", "window title")
	flag.BoolVar(&f.SaveRAM, "save", true, "persist battery RAM to ROM.sav on exit and load on start")
	flag.BoolVar(&f.Mute, "mute", false, "disable audio output")

	flag.BoolVar(&f.Headless, "headless", false, "run without a window")
	flag.IntVar(&f.Frames, "frames", 300, "frames to run in headless mode")
	flag.StringVar(&f.PNGOut, "outpng", "", "write last framebuffer to PNG at path")
	flag.StringVar(&f.Expect, "expect", "", "assert framebuffer CRC32 (hex)")
	flag.Parse()
	return f
}

func runHeadless(gb *gameboy.Emulator, frames int, pngPath, expectCRC string) error {
	if frames <= 0 {
		frames = 1
	}
	buf := make([]uint32, 160*144)

	start := time.Now()
	for i := 0; i < frames; i++ {
		gb.Frame(buf)
	}
	dur := time.Since(start)

	crc := crc32.ChecksumIEEE(uint32SliceToBytes(buf))
	fps := float64(frames) / dur.Seconds()

	log.Printf("headless: frames=%d elapsed=%s fps=%.2f fb_crc32=%08x",
		frames, dur.Truncate(time.Millisecond), fps, crc)

	if pngPath != "" {
		if err := saveFramePNG(buf, 160, 144, pngPath); err != nil {
			return fmt.Errorf("write PNG: %w", err)
		}
		log.Printf("wrote %s", pngPath)
	}

	if expectCRC != "" {
		want := strings.TrimPrefix(strings.ToLower(expectCRC), "0x")
		got := fmt.Sprintf("%08x", crc)
		if got != want {
			return fmt.Errorf("checksum mismatch: got %s, want %s", got, want)
		}
	}
	return nil
}

func uint32SliceToBytes(buf []uint32) []byte {
	b := make([]byte, len(buf)*4)
	for i, px := range buf {
		b[i*4+0] = byte(px >> 24)
		b[i*4+1] = byte(px >> 16)
		b[i*4+2] = byte(px >> 8)
		b[i*4+3] = byte(px)
	}
	return b
}

func saveFramePNG(buf []uint32, w, h int, path string) error {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i, px := range buf {
		img.Pix[i*4+0] = byte(px >> 16)
		img.Pix[i*4+1] = byte(px >> 8)
		img.Pix[i*4+2] = byte(px)
		img.Pix[i*4+3] = byte(px >> 24)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, img)
}

func mustRead(path string) []byte {
	if path == "" {
		return nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("read %s: %v", path, err)
	}
	return b
}

func main() {
	f := parseFlags()
	var rom []byte
	if f.ROMPath != "" {
		rom = mustRead(f.ROMPath)
	}
	boot := mustRead(f.BootROM)

	if len(rom) >= 0x150 {
		if h, err := cart.ParseHeader(rom); err == nil {
			log.Printf("ROM: %q type=%s banks=%d ram=%dB", h.Title, h.CartTypeStr, h.ROMBanks, h.RAMSizeBytes)
		}
	}

	gb := gameboy.New()
	if len(boot) > 0 {
		if err := gb.LoadBootROM(boot); err != nil {
			log.Fatalf("load boot ROM: %v", err)
		}
	}

	var savePath string
	if f.SaveRAM && f.ROMPath != "" {
		savePath = strings.TrimSuffix(f.ROMPath, ".gb") + ".sav"
	}
	if len(rom) > 0 {
		if err := gb.LoadGame(rom, savePath); err != nil {
			log.Fatalf("load game: %v", err)
		}
	}

	if !f.Mute {
		gb.SetAudioDevice(audiodev.NewOtoDevice(48000, 2048))
	}

	if f.Headless {
		if err := runHeadless(gb, f.Frames, f.PNGOut, f.Expect); err != nil {
			log.Fatal(err)
		}
		if err := gb.Close(); err != nil {
			log.Printf("save battery RAM: %v", err)
		}
		return
	}

	uiCfg := ui.Config{Title: f.Title, Scale: f.Scale}
	app := ui.NewApp(uiCfg, gb)
	err := app.Run()
	if saveErr := gb.Close(); saveErr != nil {
		log.Printf("save battery RAM: %v", saveErr)
	}
	if err != nil {
		log.Fatal(err)
	}
}
