package catalog

import (
	"fmt"

	"github.com/roach88/osversion/internal/ir"
	"github.com/roach88/osversion/internal/rewrite"
	"github.com/roach88/osversion/internal/rule"
	"github.com/roach88/osversion/internal/schema"
)

const (
	steamBaseboardType = "OS:ZoneHVAC:Baseboard:RadiantConvective:Steam"
	steamCoilType      = "OS:Coil:Heating:Steam:Baseboard:Radiant"
)

// Funcs returns the named rule functions the embedded steps reference.
// Rules that build new records take their layouts from dict.
func Funcs(dict schema.Dictionary) *rule.Funcs {
	f := &rule.Funcs{}
	f.RegisterCompute("fluidCoolerUserSpecifiedCapacity", fluidCoolerUserSpecifiedCapacity)
	f.RegisterCompute("twoSpeedLowFanAirFlowRate", twoSpeedLowFanAirFlowRate)
	f.RegisterSplit("splitSteamBaseboard", func(r ir.Record, newHandle rule.NewHandleFunc) ([]ir.Record, error) {
		return splitSteamBaseboard(dict, r, newHandle)
	})
	return f
}

// fluidCoolerUserSpecifiedCapacity carries the standard design capacity into
// the new user-specified slot when the cooler is sized by capacity.
func fluidCoolerUserSpecifiedCapacity(src rule.Source) (ir.Value, error) {
	method, _ := src.Token("Performance Input Method")
	if method != "StandardDesignCapacity" {
		return ir.Empty{}, nil
	}
	return src.Get("Standard Design Capacity"), nil
}

// twoSpeedLowFanAirFlowRate turns the low speed sizing factor into a flow
// rate. An autosized high speed flow leaves the low speed flow to be
// autocalculated.
func twoSpeedLowFanAirFlowRate(src rule.Source) (ir.Value, error) {
	high, ok := src.Real("High Fan Speed Air Flow Rate")
	if !ok {
		return ir.Autocalculate, nil
	}
	factor, ok := src.Real("Low Fan Speed Air Flow Rate Sizing Factor")
	if !ok {
		return ir.Autocalculate, nil
	}
	return ir.Real(high * factor), nil
}

// splitSteamBaseboard moves the heating parameters of a steam baseboard into
// a new radiant steam coil the baseboard references. The baseboard keeps its
// handle.
func splitSteamBaseboard(dict schema.Dictionary, r ir.Record, newHandle rule.NewHandleFunc) ([]ir.Record, error) {
	to := ir.V(3, 10, 0)
	unitDefs, ok := dict.Fields(to, steamBaseboardType)
	if !ok {
		return nil, fmt.Errorf("%s is not declared at %s", steamBaseboardType, to)
	}
	coilDefs, ok := dict.Fields(to, steamCoilType)
	if !ok {
		return nil, fmt.Errorf("%s is not declared at %s", steamCoilType, to)
	}

	coilVals := carry(r,
		"Heating Design Capacity Method",
		"Heating Design Capacity",
		"Degree of SubCooling",
		"Maximum Steam Flow Rate")
	if name, _ := r.Get("Name"); name != nil && name.Text() != "" {
		coilVals["Name"] = ir.Text(name.Text() + " Coil")
	}
	coil := rewrite.Layout(steamCoilType, newHandle(), coilDefs, coilVals)

	unitVals := carry(r,
		"Name",
		"Availability Schedule Name",
		"Fraction Radiant",
		"Fraction of Radiant Energy Incident on People")
	unitVals["Heating Coil Name"] = ir.Ref(coil.Handle)
	unit := rewrite.Layout(steamBaseboardType, r.Handle, unitDefs, unitVals)

	return []ir.Record{unit, coil}, nil
}

func carry(r ir.Record, names ...string) map[string]ir.Value {
	vals := make(map[string]ir.Value, len(names))
	for _, name := range names {
		if v, ok := r.Get(name); ok {
			vals[name] = v
		}
	}
	return vals
}
