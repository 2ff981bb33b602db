package analysis

import "github.com/antigravity-dev/wdlkit/internal/types"

// Requirement and hint keys are versioned: the requirements section and
// input-file overrides accept a fixed vocabulary, each key with a set of
// admissible types. The sets are built against a given arena because some
// accepted types are compound.

// RequirementTypes returns the admissible types for a requirements (or
// runtime) key, or nil when the key is not recognized for the version.
func RequirementTypes(d *Document, name string) []types.Type {
	str := types.Primitive(types.String)
	integer := types.Primitive(types.Int)
	float := types.Primitive(types.Float)
	boolean := types.Primitive(types.Boolean)

	switch name {
	case "container", "docker":
		return []types.Type{str, d.Types.Array(str)}
	case "cpu":
		return []types.Type{integer, float}
	case "memory":
		return []types.Type{integer, str}
	case "gpu":
		if d.Supports(1, 2) {
			return []types.Type{boolean, integer}
		}
		return []types.Type{boolean}
	case "fpga":
		if !d.Supports(1, 2) {
			return nil
		}
		return []types.Type{boolean, integer}
	case "disks":
		return []types.Type{integer, str, d.Types.Array(str)}
	case "max_retries", "maxRetries":
		return []types.Type{integer}
	case "return_codes", "returnCodes":
		return []types.Type{integer, str, d.Types.Array(integer)}
	}
	return nil
}

// HintTypes returns the admissible types for a recognized hint key, or nil
// for free-form hints, which accept anything.
func HintTypes(d *Document, name string) []types.Type {
	str := types.Primitive(types.String)
	integer := types.Primitive(types.Int)
	boolean := types.Primitive(types.Boolean)

	switch name {
	case "max_cpu", "maxCpu":
		return []types.Type{integer, types.Primitive(types.Float)}
	case "max_memory", "maxMemory":
		return []types.Type{integer, str}
	case "disks":
		return []types.Type{str, d.Types.Map(str, str)}
	case "gpu", "fpga":
		return []types.Type{str}
	case "short_task", "shortTask":
		return []types.Type{boolean}
	case "localization_optional", "localizationOptional":
		return []types.Type{boolean}
	case "inputs":
		return []types.Type{types.Input()}
	case "outputs":
		return []types.Type{types.Output()}
	}
	return nil
}
