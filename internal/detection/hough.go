package detection

import (
	"math"
	"sort"

	"github.com/ironsheep/docscan-mcp/internal/imaging"
)

// ThetaBins is the number of 1° angle bins covering [0, π).
const ThetaBins = 180

// Line is a straight line in polar normal form: x·cos(θ) + y·sin(θ) = ρ.
type Line struct {
	Rho   float64 `json:"rho"`
	Theta float64 `json:"theta"`
	Votes int     `json:"votes"`
}

// Degrees returns Theta in degrees.
func (l Line) Degrees() float64 {
	return l.Theta * 180 / math.Pi
}

// HoughLines votes every edge point into a (ρ, θ) accumulator and returns
// the cells whose votes are strictly greater than threshold.
//
// ρ is quantized to 1px over [-maxRho, maxRho] with maxRho = √(w²+h²); a
// vote lands in cell round(ρ + maxRho). The reported Rho is the cell index
// minus maxRho. Results are sorted by votes, highest first; equal votes keep
// accumulator order (ρ cell, then θ).
func HoughLines(points []imaging.EdgePoint, w, h, threshold int) []Line {
	if len(points) == 0 || w <= 0 || h <= 0 {
		return nil
	}

	maxRho := math.Sqrt(float64(w*w + h*h))
	numRho := int(math.Ceil(2*maxRho)) + 1

	cos := make([]float64, ThetaBins)
	sin := make([]float64, ThetaBins)
	for t := 0; t < ThetaBins; t++ {
		angle := float64(t) * math.Pi / ThetaBins
		cos[t] = math.Cos(angle)
		sin[t] = math.Sin(angle)
	}

	accumulator := make([]int, numRho*ThetaBins)
	for _, p := range points {
		x, y := float64(p.X), float64(p.Y)
		for t := 0; t < ThetaBins; t++ {
			rho := x*cos[t] + y*sin[t]
			idx := int(math.Round(rho + maxRho))
			if idx >= 0 && idx < numRho {
				accumulator[idx*ThetaBins+t]++
			}
		}
	}

	var lines []Line
	for idx := 0; idx < numRho; idx++ {
		for t := 0; t < ThetaBins; t++ {
			votes := accumulator[idx*ThetaBins+t]
			if votes > threshold {
				lines = append(lines, Line{
					Rho:   float64(idx) - maxRho,
					Theta: float64(t) * math.Pi / ThetaBins,
					Votes: votes,
				})
			}
		}
	}

	sort.SliceStable(lines, func(i, j int) bool {
		return lines[i].Votes > lines[j].Votes
	})
	return lines
}
