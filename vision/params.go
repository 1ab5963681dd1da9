package vision

import "fmt"

// Params holds the fixed constants of the plate locator. The defaults are part of the algorithm's
// contract: identical parameters give identical results.
type Params struct {
	// Edge preserving smoothing (bilateral filter).
	Diameter   int     `json:"diameter"`    // Neighbourhood diameter in pixels.
	SigmaColor float64 `json:"sigma_color"` // Range sensitivity.
	SigmaSpace float64 `json:"sigma_space"` // Spatial sensitivity.

	// Dual threshold edge detection (Canny).
	CannyLow  float32 `json:"canny_low"`
	CannyHigh float32 `json:"canny_high"`

	// Contour selection.
	TopK        int     `json:"top_k"`        // Largest contours examined, by area.
	ApproxRatio float64 `json:"approx_ratio"` // Polygon approximation tolerance per unit of perimeter.
}

// DefaultParams returns the reference parameters.
func DefaultParams() Params {
	return Params{
		Diameter:    11,
		SigmaColor:  17,
		SigmaSpace:  17,
		CannyLow:    30,
		CannyHigh:   200,
		TopK:        10,
		ApproxRatio: 0.018,
	}
}

// Validate checks that the parameters are usable. Zero TopK and zero ApproxRatio are valid.
func (p Params) Validate() error {
	switch {
	case p.Diameter <= 0:
		return fmt.Errorf("diameter must be positive, got %d", p.Diameter)
	case p.SigmaColor < 0 || p.SigmaSpace < 0:
		return fmt.Errorf("sigma values must not be negative")
	case p.CannyLow < 0 || p.CannyHigh < p.CannyLow:
		return fmt.Errorf("invalid edge thresholds %v/%v", p.CannyLow, p.CannyHigh)
	case p.TopK < 0:
		return fmt.Errorf("top_k must not be negative, got %d", p.TopK)
	case p.ApproxRatio < 0:
		return fmt.Errorf("approx_ratio must not be negative, got %v", p.ApproxRatio)
	}
	return nil
}
