package decompiler

import (
	"bytes"
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
)

// RenamingType selects how the service renames locals and upvalues.
type RenamingType string

const (
	RenamingNone             RenamingType = "NONE"
	RenamingUnique           RenamingType = "UNIQUE"
	RenamingUniqueValueBased RenamingType = "UNIQUE_VALUE_BASED"
)

// OptionsV1 is the first revision of the service's options payload. Unset
// fields keep the service defaults.
type OptionsV1 struct {
	RenamingType                  *RenamingType `json:"renamingType,omitempty"`
	RemoveDotZero                 *bool         `json:"removeDotZero,omitempty"`
	RemoveFunctionEntryNote       *bool         `json:"removeFunctionEntryNote,omitempty"`
	SwapConstantPosition          *bool         `json:"swapConstantPosition,omitempty"`
	InlineWhileConditions         *bool         `json:"inlineWhileConditions,omitempty"`
	ShowFunctionLineDefined       *bool         `json:"showFunctionLineDefined,omitempty"`
	RemoveUselessNumericForStep   *bool         `json:"removeUselessNumericForStep,omitempty"`
	RemoveUselessReturnInFunction *bool         `json:"removeUselessReturnInFunction,omitempty"`
	SugarRecursiveLocalFunctions  *bool         `json:"sugarRecursiveLocalFunctions,omitempty"`
	SugarLocalFunctions           *bool         `json:"sugarLocalFunctions,omitempty"`
	SugarGlobalFunctions          *bool         `json:"sugarGlobalFunctions,omitempty"`
	SugarGenericFor               *bool         `json:"sugarGenericFor,omitempty"`
	ShowFunctionDebugName         *bool         `json:"showFunctionDebugName,omitempty"`
	SugarRepeatLoops              *bool         `json:"sugarRepeatLoops,omitempty"`
	UpvalueComment                *bool         `json:"upvalueComment,omitempty"`
}

// OptionsV2 is the second revision which has no fields yet.
type OptionsV2 struct{}

var validRenamingTypes = map[RenamingType]bool{
	RenamingNone:             true,
	RenamingUnique:           true,
	RenamingUniqueValueBased: true,
}

// Validate checks that all set fields carry known values.
func (o *OptionsV1) Validate() error {
	if o.RenamingType != nil && !validRenamingTypes[*o.RenamingType] {
		return eris.Errorf("invalid renamingType: %s", *o.RenamingType)
	}
	return nil
}

// LoadOptionsFile reads an options payload from a JSON file. The result is
// either a *OptionsV1 or a *OptionsV2, depending on the requested revision.
func LoadOptionsFile(path string, version int) (interface{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to read options file %s", path)
	}

	switch version {
	case 1:
		opts := new(OptionsV1)
		if err := strictUnmarshal(data, opts); err != nil {
			return nil, eris.Wrapf(err, "failed to parse options file %s", path)
		}
		if err := opts.Validate(); err != nil {
			return nil, err
		}
		return opts, nil
	case 2:
		opts := new(OptionsV2)
		if err := strictUnmarshal(data, opts); err != nil {
			return nil, eris.Wrapf(err, "failed to parse options file %s", path)
		}
		return opts, nil
	default:
		return nil, eris.Errorf("unknown options version %d (must be 1 or 2)", version)
	}
}

func strictUnmarshal(data []byte, dest interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode(dest)
}
