// Package domain models Landsat 8 top-of-atmosphere (TOA) imagery and the
// value types the burn-scar detection pipeline is built from.
//
// # Band Conventions
//
// Rasters carry named bands following the Landsat 8 OLI/TIRS layout:
//
//	B2   visible blue        reflectance, nominally [0, 1]
//	B3   visible green       reflectance
//	B4   visible red         reflectance
//	B5   near infrared       reflectance
//	B6   shortwave IR 1      reflectance
//	B7   shortwave IR 2      reflectance
//	B10  thermal infrared    brightness temperature in kelvin (~230-330 K)
//
// Reflectance values outside [0, 1] occur in real TOA scenes (specular
// glint, saturated snow) and are carried through unchanged; calibration
// rescales tolerate them.
//
// # Cloud Scoring
//
// Cloud likelihood per pixel is the minimum of five rescaled evidence
// signals, so a pixel counts as cloud only when every heuristic agrees:
//
//	blue brightness       B2             over [0.1, 0.3]
//	visible brightness    B4 + B3 + B2   over [0.2, 0.8]
//	infrared brightness   B5 + B6 + B7   over [0.3, 0.8]
//	thermal               B10            over [300, 290]  (descending)
//	snow index (NDSI)     (B3-B6)/(B3+B6) over [0.8, 0.6] (descending)
//
// Each signal rescales as (raw - first) / (second - first). The two
// descending pairs are deliberate: cooler pixels and less snow-like pixels
// score higher. The NDSI term suppresses snow, which is bright and cold
// like cloud but strongly reflective in green relative to shortwave IR.
//
// # Normalized Burn Ratio
//
// Burn scars are detected by differencing the Normalized Burn Ratio of a
// pre-fire and a post-fire composite:
//
//	NBR   = (SWIR - NIR) / (SWIR + NIR)
//	delta = NBR_post - NBR_init
//	burned when delta > 0.44
//
// The 0.44 delta threshold follows Escuin, Navarro and Fernández,
// "Fire severity assessment by using NBR and NDVI derived from LANDSAT
// TM/ETM images", Int. J. Remote Sensing 29 (2008) 1053-1073. The band
// pairing here contrasts B6 against B4, the pairing the 0.44 calibration
// was tuned against; see [NBRSWIRBand] and [NBRNIRBand].
//
// # No-Data Model
//
// Every raster carries a per-pixel validity plane shared by all bands. An
// invalid (no-data) pixel is excluded from reductions and statistics and
// renders as absent, never as zero. The zero-value [Raster] is the
// canonical empty raster: it propagates through every operation, which is
// how data sparsity (an empty date window, a fully clouded season)
// degrades the pipeline output without raising errors.
package domain
