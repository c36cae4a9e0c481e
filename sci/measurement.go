package sci

import (
	"math"

	"github.com/reoring/tagtree"
)

// SignalType tells analog from digital signals.
type SignalType string

const (
	Analog  SignalType = "analog"
	Digital SignalType = "digital"
)

// Signal describes what flows between two stages of a measurement chain.
type Signal struct {
	Type SignalType
	Unit string
}

func (s Signal) check(p tagtree.Path) error {
	switch s.Type {
	case Analog, Digital:
	default:
		return tagtree.Malformed(p.Key("signal_type"), "unknown signal type %q", s.Type)
	}
	if s.Unit == "" {
		return tagtree.Malformed(p.Key("unit"), "missing unit")
	}
	return nil
}

// MeasurementError is the deviation a chain stage adds to its signal.
type MeasurementError struct {
	Deviation float64
}

func (MeasurementError) TagName() tagtree.Name { return MeasurementErrorName }

func (e MeasurementError) Check() error {
	if math.IsNaN(e.Deviation) || math.IsInf(e.Deviation, 0) || e.Deviation < 0 {
		return tagtree.Malformed(tagtree.Path{"deviation"}, "deviation must be a finite non-negative number, got %v", e.Deviation)
	}
	return nil
}

// Source is the first stage of a measurement chain.
type Source struct {
	Name   string
	Output Signal
	Error  MeasurementError
}

func (Source) TagName() tagtree.Name { return SourceName }

func (s Source) Check() error {
	if s.Name == "" {
		return tagtree.Malformed(tagtree.Path{"name"}, "missing source name")
	}
	return s.Output.check(tagtree.Path{"output_signal"})
}

// DataTransformation turns one signal into another, for example an
// amplifier or an A/D converter. Func optionally gives the transfer
// function.
type DataTransformation struct {
	Name   string
	Input  Signal
	Output Signal
	Error  MeasurementError
	Func   *Expression
	Meta   string
}

func (d DataTransformation) check(p tagtree.Path) error {
	if d.Name == "" {
		return tagtree.Malformed(p.Key("name"), "missing transformation name")
	}
	if err := d.Input.check(p.Key("input_signal")); err != nil {
		return err
	}
	return d.Output.check(p.Key("output_signal"))
}

func (d DataTransformation) Equal(o DataTransformation) bool {
	if d.Name != o.Name || d.Input != o.Input || d.Output != o.Output || d.Error != o.Error || d.Meta != o.Meta {
		return false
	}
	if (d.Func == nil) != (o.Func == nil) {
		return false
	}
	return d.Func == nil || d.Func.Equal(*o.Func)
}

// GenericEquipment is a device offering signal sources and transformations.
type GenericEquipment struct {
	Name            string
	Sources         []Source
	Transformations []DataTransformation
}

func (GenericEquipment) TagName() tagtree.Name { return EquipmentName }

func (g GenericEquipment) Check() error {
	if g.Name == "" {
		return tagtree.Malformed(tagtree.Path{"name"}, "missing equipment name")
	}
	for i, d := range g.Transformations {
		if err := d.check(tagtree.Path{"data_transformations"}.Index(i)); err != nil {
			return err
		}
	}
	return nil
}

func (g GenericEquipment) Equal(o GenericEquipment) bool {
	if g.Name != o.Name || len(g.Sources) != len(o.Sources) || len(g.Transformations) != len(o.Transformations) {
		return false
	}
	for i := range g.Sources {
		if g.Sources[i] != o.Sources[i] {
			return false
		}
	}
	for i := range g.Transformations {
		if !g.Transformations[i].Equal(o.Transformations[i]) {
			return false
		}
	}
	return true
}

// MeasurementChain is a source followed by processors. Each processor takes
// the signal its predecessor produces.
type MeasurementChain struct {
	Name       string
	Source     Source
	Processors []DataTransformation
}

// Output returns the signal leaving the last stage.
func (c MeasurementChain) Output() Signal {
	if n := len(c.Processors); n > 0 {
		return c.Processors[n-1].Output
	}
	return c.Source.Output
}

func (c MeasurementChain) check(p tagtree.Path) error {
	if c.Name == "" {
		return tagtree.Malformed(p.Key("name"), "missing chain name")
	}
	prev, from := c.Source.Output, "source "+c.Source.Name
	for i, d := range c.Processors {
		q := p.Key("data_processors").Index(i)
		if err := d.check(q); err != nil {
			return err
		}
		if d.Input != prev {
			return tagtree.Malformed(q.Key("input_signal"), "%s expects %s [%s] but %s produces %s [%s]",
				d.Name, d.Input.Type, d.Input.Unit, from, prev.Type, prev.Unit)
		}
		prev, from = d.Output, d.Name
	}
	return nil
}

func (c MeasurementChain) Equal(o MeasurementChain) bool {
	if c.Name != o.Name || c.Source != o.Source || len(c.Processors) != len(o.Processors) {
		return false
	}
	for i := range c.Processors {
		if !c.Processors[i].Equal(o.Processors[i]) {
			return false
		}
	}
	return true
}

// Measurement is recorded data together with the chain that produced it.
type Measurement struct {
	Name     string
	DataName string
	Data     TimeSeries
	Chain    MeasurementChain
}

func (Measurement) TagName() tagtree.Name { return MeasurementName }

// Check verifies the chain links. Problems are reported as
// *tagtree.MalformedNodeError at the tree key of the field.
func (m Measurement) Check() error {
	if m.Name == "" {
		return tagtree.Malformed(tagtree.Path{"name"}, "missing measurement name")
	}
	return m.Chain.check(tagtree.Path{"measurement_chain"})
}

func (m Measurement) Equal(o Measurement) bool {
	return m.Name == o.Name && m.DataName == o.DataName && m.Data.Equal(o.Data) && m.Chain.Equal(o.Chain)
}
