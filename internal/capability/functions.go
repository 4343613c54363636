package capability

import "sort"

// Function codes understood by the template encoder.
const (
	FuncPower       = "power"
	FuncPowerV2     = "power_v2"
	FuncColorHSV    = "color_hsv"
	FuncColorHSVV2  = "color_hsv_v2"
	FuncWhiteV2     = "white_v2"
	FuncSceneData   = "scene_data"
	FuncSceneDataV2 = "scene_data_v2"
	FuncSceneDataV3 = "scene_data_v3"
)

// Preference lists, newest wire format first.
var (
	PowerPreferences  = []string{FuncPowerV2, FuncPower}
	ColorPreferences  = []string{FuncColorHSVV2, FuncColorHSV}
	WhitePreferences  = []string{FuncWhiteV2}
	EffectPreferences = []string{FuncSceneDataV3, FuncSceneDataV2, FuncSceneData}
)

// ParamRange is the inclusive value range declared for a template parameter.
type ParamRange struct {
	Min int `json:"min" yaml:"min"`
	Max int `json:"max" yaml:"max"`
}

// Clamp limits v to the range. A zero-width range {0,0} is treated as
// undeclared and leaves v untouched.
func (r ParamRange) Clamp(v int) int {
	if r.Min == 0 && r.Max == 0 {
		return v
	}
	if v < r.Min {
		return r.Min
	}
	if v > r.Max {
		return r.Max
	}
	return v
}

// FunctionTemplate is one firmware-gated command from the capability database.
type FunctionTemplate struct {
	Code        string                `json:"code" yaml:"code"`
	MinFirmware int                   `json:"min_firmware" yaml:"min_firmware"`
	Template    string                `json:"template" yaml:"template"`
	Checksum    bool                  `json:"checksum" yaml:"checksum"`
	Reply       bool                  `json:"reply" yaml:"reply"`
	Params      map[string]ParamRange `json:"params,omitempty" yaml:"params,omitempty"`
}

// SupportedBy reports whether a device running firmware can use the function.
func (f FunctionTemplate) SupportedBy(firmware int) bool {
	return f.MinFirmware <= firmware
}

// FunctionSet indexes function templates by code.
type FunctionSet map[string]FunctionTemplate

// NewFunctionSet indexes templates by code. Later duplicates win.
func NewFunctionSet(templates ...FunctionTemplate) FunctionSet {
	set := make(FunctionSet, len(templates))
	for _, t := range templates {
		set[t.Code] = t
	}
	return set
}

// Codes returns the function codes in sorted order.
func (s FunctionSet) Codes() []string {
	codes := make([]string, 0, len(s))
	for code := range s {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// FunctionTable maps product IDs to their function sets, as parsed from a
// capability database file.
type FunctionTable map[uint8]FunctionSet
