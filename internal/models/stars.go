package models

// starWidth is the number of cells in a star rating.
const starWidth = 5

// usesThresholds maps use counts to filled stars: 0, 1, 5, 10, 50, 100.
var usesThresholds = []int{1, 5, 10, 50, 100}

// velocityThresholds maps velocity to filled stars: 0, 0.1, 0.5, 1.0, 2.0, 4.0.
var velocityThresholds = []float64{0.1, 0.5, 1.0, 2.0, 4.0}

// UsesStars renders the use count as a five-cell star bar, e.g. "**---".
func UsesStars(uses int) string {
	filled := 0
	for _, th := range usesThresholds {
		if uses >= th {
			filled++
		}
	}
	return renderStars(filled)
}

// VelocityStars renders velocity as a five-cell star bar.
func VelocityStars(v float64) string {
	filled := 0
	for _, th := range velocityThresholds {
		if v >= th {
			filled++
		}
	}
	return renderStars(filled)
}

// Rating is the combined display used in headings: [uses|velocity].
func (l *Lesson) Rating() string {
	return "[" + UsesStars(l.Uses) + "|" + VelocityStars(l.Velocity) + "]"
}

func renderStars(filled int) string {
	if filled > starWidth {
		filled = starWidth
	}
	out := make([]byte, starWidth)
	for i := 0; i < starWidth; i++ {
		if i < filled {
			out[i] = '*'
		} else {
			out[i] = '-'
		}
	}
	return string(out)
}
