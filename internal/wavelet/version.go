package wavelet

import (
	"fmt"

	"github.com/robert-malhotra/tomoslice/internal/frame"
)

const (
	versionMajor = 1
	versionMinor = 0
)

// Version describes the codec and its entropy backends.
func Version() string {
	return fmt.Sprintf("wavelet %d.%d (cdf53, frame v%d, zstd s2 lz4)", versionMajor, versionMinor, frame.Version)
}
