package licenses

import (
	_ "embed"
	"strings"
)

//go:embed assets/LICENSE
var licenseText string

//go:embed assets/THIRD_PARTY_NOTICES
var thirdPartyText string

// LicenseText returns Warden's own license.
func LicenseText() string {
	return strings.TrimRight(licenseText, "\n")
}

// ThirdPartyText returns third-party notices for warden's direct dependencies.
func ThirdPartyText() string {
	return strings.TrimRight(thirdPartyText, "\n")
}
