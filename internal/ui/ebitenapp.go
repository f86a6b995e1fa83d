// Package ui implements the ebiten-backed desktop frontend: a window, key
// polling mapped to the eight joypad buttons, and a framebuffer texture
// rebuilt from the core's ARGB8888 output every frame.
package ui

import (
	"github.com/hajimehoshi/ebiten/v2"

	"github.com/kestrelbit/gbcore/internal/gameboy"
	"github.com/kestrelbit/gbcore/internal/joypad"
)

// App is an ebiten.Game driving a gameboy.Emulator.
type App struct {
	cfg Config
	gb  *gameboy.Emulator

	tex []uint32 // ARGB8888 scratch, reused every frame
	img *ebiten.Image
	rgba []byte
}

// NewApp returns an App for gb, applying cfg's window title and scale.
func NewApp(cfg Config, gb *gameboy.Emulator) *App {
	cfg.Defaults()
	ebiten.SetWindowTitle(cfg.Title)
	ebiten.SetWindowSize(160*cfg.Scale, 144*cfg.Scale)
	return &App{
		cfg:  cfg,
		gb:   gb,
		tex:  make([]uint32, 160*144),
		rgba: make([]byte, 160*144*4),
	}
}

// Run starts the ebiten game loop. Blocks until the window closes.
func (a *App) Run() error { return ebiten.RunGame(a) }

var keyMap = [...]struct {
	key ebiten.Key
	btn joypad.Key
}{
	{ebiten.KeyZ, joypad.A},
	{ebiten.KeyX, joypad.B},
	{ebiten.KeyEnter, joypad.Start},
	{ebiten.KeyShiftRight, joypad.Select},
	{ebiten.KeyRight, joypad.Right},
	{ebiten.KeyLeft, joypad.Left},
	{ebiten.KeyUp, joypad.Up},
	{ebiten.KeyDown, joypad.Down},
}

// Update polls keys into the joypad and runs exactly one video frame.
func (a *App) Update() error {
	for _, m := range keyMap {
		a.gb.SetKeyState(m.btn, ebiten.IsKeyPressed(m.key))
	}
	a.gb.Frame(a.tex)
	return nil
}

// Draw rebuilds the window's texture from the last frame's ARGB8888
// buffer, converting to the RGBA byte order ebiten.Image expects.
func (a *App) Draw(screen *ebiten.Image) {
	if a.img == nil {
		a.img = ebiten.NewImage(160, 144)
	}
	for i, px := range a.tex {
		a.rgba[i*4+0] = byte(px >> 16) // R
		a.rgba[i*4+1] = byte(px >> 8)  // G
		a.rgba[i*4+2] = byte(px)       // B
		a.rgba[i*4+3] = byte(px >> 24) // A
	}
	a.img.WritePixels(a.rgba)

	op := &ebiten.DrawImageOptions{}
	sx := float64(screen.Bounds().Dx()) / 160
	sy := float64(screen.Bounds().Dy()) / 144
	op.GeoM.Scale(sx, sy)
	screen.DrawImage(a.img, op)
}

// Layout sets the logical screen size to the Game Boy's 160x144 output
// times the configured scale; Draw's GeoM scales the 160x144 image up to
// fill it.
func (a *App) Layout(outsideWidth, outsideHeight int) (int, int) {
	return 160 * a.cfg.Scale, 144 * a.cfg.Scale
}
