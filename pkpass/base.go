package pkpass

const baseStruct = "BaseMetadata"

// BaseMetadata holds the top-level descriptive keys of a manifest.
type BaseMetadata struct {
	SerialNumber       string `json:"serialNumber"`
	FormatVersion      uint64 `json:"formatVersion"`
	PassTypeIdentifier string `json:"passTypeIdentifier"`
	OrganizationName   string `json:"organizationName"`
	TeamIdentifier     string `json:"teamIdentifier"`
	Description        string `json:"description"`
	BackgroundColor    string `json:"backgroundColor"`
	ForegroundColor    string `json:"foregroundColor"`

	// LogoText is optional.
	LogoText string `json:"logoText,omitempty"`
}

// ExtractBase validates the base metadata of a manifest. Keys are checked in
// declaration order and the first failure is returned.
func ExtractBase(manifest interface{}) (BaseMetadata, error) {
	obj, err := requireObject(manifest, "manifest")
	if err != nil {
		return BaseMetadata{}, err
	}

	var b BaseMetadata
	if b.SerialNumber, err = requireString(obj, baseStruct, "serialNumber"); err != nil {
		return BaseMetadata{}, err
	}
	if b.FormatVersion, err = requireUint(obj, baseStruct, "formatVersion"); err != nil {
		return BaseMetadata{}, err
	}
	if b.PassTypeIdentifier, err = requireString(obj, baseStruct, "passTypeIdentifier"); err != nil {
		return BaseMetadata{}, err
	}
	if b.OrganizationName, err = requireString(obj, baseStruct, "organizationName"); err != nil {
		return BaseMetadata{}, err
	}
	if b.TeamIdentifier, err = requireString(obj, baseStruct, "teamIdentifier"); err != nil {
		return BaseMetadata{}, err
	}
	if b.Description, err = requireString(obj, baseStruct, "description"); err != nil {
		return BaseMetadata{}, err
	}
	if b.BackgroundColor, err = requireString(obj, baseStruct, "backgroundColor"); err != nil {
		return BaseMetadata{}, err
	}
	if b.ForegroundColor, err = requireString(obj, baseStruct, "foregroundColor"); err != nil {
		return BaseMetadata{}, err
	}
	b.LogoText = optionalString(obj, "logoText")

	return b, nil
}
