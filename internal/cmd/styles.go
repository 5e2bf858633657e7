package cmd

import "github.com/weathertiles/core/internal/render"

// defaultStyles returns the reference style catalog shipped with this
// binary. render.Style carries ToDisplayUnit conversion funcs, so styles
// can't be expressed as plain config data the way layers can — a
// production deployment that needs custom styles links its own cmd
// package against internal/engine instead of this one.
func defaultStyles() map[string]render.Style {
	kelvinToCelsius := func(k float64) float64 { return k - 273.15 }

	return map[string]render.Style{
		"temperature": {Gradient: &render.Gradient{
			ToDisplayUnit: kelvinToCelsius,
			Colormap: render.Colormap{
				{Value: -40, R: 0x2b, G: 0x1f, B: 0x6b, A: 0xff},
				{Value: -20, R: 0x1e, G: 0x5f, B: 0xb0, A: 0xff},
				{Value: 0, R: 0x2e, G: 0xa8, B: 0xd6, A: 0xff},
				{Value: 10, R: 0x6e, G: 0xc9, B: 0x5a, A: 0xff},
				{Value: 20, R: 0xf2, G: 0xd0, B: 0x3c, A: 0xff},
				{Value: 30, R: 0xe8, G: 0x6a, B: 0x2e, A: 0xff},
				{Value: 45, R: 0x9e, G: 0x1b, B: 0x1b, A: 0xff},
			},
		}},
		"precipitation": {Gradient: &render.Gradient{
			Colormap: render.Colormap{
				{Value: 0, R: 0xff, G: 0xff, B: 0xff, A: 0x00},
				{Value: 0.5, R: 0xa6, G: 0xd9, B: 0x6a, A: 0xc0},
				{Value: 5, R: 0x1a, G: 0x9c, B: 0x3c, A: 0xd8},
				{Value: 20, R: 0x1f, G: 0x4e, B: 0xc9, A: 0xe8},
				{Value: 60, R: 0x6a, G: 0x1b, B: 0x9a, A: 0xff},
			},
		}},
		"pressure_isolines": {Isolines: &render.Isolines{
			Levels:     []float64{96000, 98000, 100000, 101325, 102000, 104000},
			LabelEvery: 2,
			Width:      1.25,
		}},
		"wind_barbs": {WindBarbs: &render.WindBarbs{
			Spacing:        32,
			SpeedThreshold: 2.5,
		}},
	}
}
