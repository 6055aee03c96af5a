package arena

// Option configures an Arena.
type Option func(*Arena)

// WithCalibration sets the raw-to-physical scale calibration.
func WithCalibration(c Calibration) Option {
	return func(a *Arena) { a.calibration = &c }
}

// WithOrientation sets rotation, recentring and axis flip.
func WithOrientation(o Orientation) Option {
	return func(a *Arena) {
		o.Order = append([]string(nil), o.Order...)
		a.orientation = &o
	}
}
