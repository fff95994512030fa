package domain

// Landsat 8 OLI/TIRS band names carried by catalog scenes. See the package
// documentation for units and value ranges.
const (
	BandBlue    = "B2"
	BandGreen   = "B3"
	BandRed     = "B4"
	BandNIR     = "B5"
	BandSWIR1   = "B6"
	BandSWIR2   = "B7"
	BandThermal = "B10"
)

// SceneBands lists every band a scene must carry to be cloud-scoreable.
var SceneBands = []string{
	BandBlue, BandGreen, BandRed, BandNIR, BandSWIR1, BandSWIR2, BandThermal,
}

// Calibration constants. Both are plumbed through constructors rather than
// read in place, so tests and operators can vary them.
const (
	// DefaultCloudThreshold is the cloud-score cutoff: pixels scoring at or
	// below it are kept, pixels above it are masked.
	DefaultCloudThreshold = 0.5

	// DefaultBurnThreshold is the NBR delta above which a pixel classifies
	// as burned. The comparison is strict: a delta exactly at the threshold
	// is not burned. Calibration from Escuin, Navarro and Fernández (2008).
	DefaultBurnThreshold = 0.44
)

// Normalized Burn Ratio band pairing. The ratio contrasts shortwave
// infrared against B4; the 0.44 delta calibration was derived against this
// pairing, so changing one side without re-deriving the threshold skews
// classification.
const (
	NBRSWIRBand = BandSWIR1
	NBRNIRBand  = BandRed
)
