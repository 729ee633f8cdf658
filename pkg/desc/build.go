// Package desc reads .pnr design descriptions: cells with their ports,
// timing arcs and parameters, nets with routed delays, budget floors, a
// clock constraint and LUT site placements.
package desc

import (
	"io"

	"github.com/pkg/errors"

	"github.com/OpenTraceLab/OpenTracePnR/pkg/delay"
	"github.com/OpenTraceLab/OpenTracePnR/pkg/netlist"
	"github.com/OpenTraceLab/OpenTracePnR/pkg/pack"
	"github.com/OpenTraceLab/OpenTracePnR/pkg/timing"
)

// Design is a description resolved into a netlist and a delay table.
type Design struct {
	Netlist *netlist.Netlist
	Delays  *delay.Table

	FrequencyMHz float64 // 0 when the description has no frequency statement
	Pinned       bool
	Sites        []Site
}

// Site is one "site" statement.
type Site struct {
	Name       string
	Element    string
	Placements []pack.Placement
}

// TimingConfig returns the timing configuration the description asks for.
func (d *Design) TimingConfig() *timing.Config {
	cfg := timing.DefaultConfig()
	if d.FrequencyMHz > 0 {
		cfg.TargetFreq = d.FrequencyMHz * 1e6
		cfg.UserFreq = d.Pinned
	}
	return cfg
}

// Load parses and builds a description from r.
func Load(name string, r io.Reader) (*Design, error) {
	p, err := NewParser()
	if err != nil {
		return nil, err
	}
	f, err := p.Parse(name, r)
	if err != nil {
		return nil, err
	}
	return Build(f)
}

// LoadFile parses and builds the description at path.
func LoadFile(path string) (*Design, error) {
	p, err := NewParser()
	if err != nil {
		return nil, err
	}
	f, err := p.ParseFile(path)
	if err != nil {
		return nil, err
	}
	return Build(f)
}

// Build resolves a parsed file. Cells are created first so nets and sites
// may refer to cells declared later in the file.
func Build(f *File) (*Design, error) {
	name := ""
	for _, d := range f.Decls {
		if d.Design != nil {
			if name != "" {
				return nil, errors.New("desc: more than one design statement")
			}
			name = *d.Design
		}
	}
	nl := netlist.New(name)
	d := &Design{Netlist: nl, Delays: delay.NewTable(nl)}

	for _, decl := range f.Decls {
		if decl.Cell != nil {
			if err := d.addCell(decl.Cell); err != nil {
				return nil, err
			}
		}
	}

	for _, decl := range f.Decls {
		var err error
		switch {
		case decl.Frequency != nil:
			if d.FrequencyMHz != 0 {
				return nil, errors.New("desc: more than one frequency statement")
			}
			if !(decl.Frequency.MHz > 0) {
				return nil, errors.Errorf("desc: frequency must be positive, got %g", decl.Frequency.MHz)
			}
			d.FrequencyMHz = decl.Frequency.MHz
			d.Pinned = decl.Frequency.Pinned
		case decl.Floor != nil:
			d.Delays.SetFloor(decl.Floor.CellType, netlist.Delay(decl.Floor.Delay))
		case decl.Net != nil:
			err = d.addNet(decl.Net)
		case decl.Site != nil:
			err = d.addSite(decl.Site)
		}
		if err != nil {
			return nil, err
		}
	}

	if err := nl.Validate(); err != nil {
		return nil, errors.Wrap(err, "desc")
	}
	return d, nil
}

func (d *Design) addCell(c *CellDecl) error {
	nl := d.Netlist
	id, err := nl.AddCell(c.Name, c.Type)
	if err != nil {
		return errors.Wrapf(err, "desc: %s", c.Pos)
	}
	cell := nl.Cell(id)

	addPorts := func(names []string, dir netlist.Direction) error {
		for _, p := range names {
			if err := nl.AddPort(id, p, dir); err != nil {
				return errors.Wrapf(err, "desc: %s", c.Pos)
			}
		}
		return nil
	}

	// Ports first so clock and arc statements can name any of them.
	for _, item := range c.Items {
		var err error
		switch {
		case item.In != nil:
			err = addPorts(item.In, netlist.DirIn)
		case item.Out != nil:
			err = addPorts(item.Out, netlist.DirOut)
		case item.Inout != nil:
			err = addPorts(item.Inout, netlist.DirInout)
		}
		if err != nil {
			return err
		}
	}

	for _, item := range c.Items {
		switch {
		case item.Clock != nil:
			for _, p := range []string{item.Clock.Port, item.Clock.Domain} {
				if cell.Port(p) == nil {
					return errors.Errorf("desc: %s: cell %s has no port %s", c.Pos, c.Name, p)
				}
			}
			d.Delays.SetClock(netlist.PortRef{Cell: id, Port: item.Clock.Port}, item.Clock.Domain)
		case item.Arc != nil:
			for _, p := range []string{item.Arc.From, item.Arc.To} {
				if cell.Port(p) == nil {
					return errors.Errorf("desc: %s: cell %s has no port %s", c.Pos, c.Name, p)
				}
			}
			d.Delays.SetCellDelay(id, item.Arc.From, item.Arc.To, netlist.Delay(item.Arc.Delay))
		case item.Param != nil:
			if _, dup := cell.Params[item.Param.Key]; dup {
				return errors.Errorf("desc: %s: cell %s sets %s twice", c.Pos, c.Name, item.Param.Key)
			}
			cell.Params[item.Param.Key] = item.Param.Value
		}
	}
	return nil
}

func (d *Design) resolve(p *PortPath) (netlist.PortRef, error) {
	cell, ok := d.Netlist.CellByName(p.Cell)
	if !ok {
		return netlist.PortRef{}, errors.Errorf("desc: %s: unknown cell %s", p.Pos, p.Cell)
	}
	return netlist.PortRef{Cell: cell.ID, Port: p.Port}, nil
}

func (d *Design) addNet(n *NetDecl) error {
	nl := d.Netlist
	id, err := nl.AddNet(n.Name)
	if err != nil {
		return errors.Wrapf(err, "desc: %s", n.Pos)
	}

	if n.Driver != nil {
		ref, err := d.resolve(n.Driver)
		if err != nil {
			return err
		}
		if err := nl.ConnectDriver(id, ref); err != nil {
			return errors.Wrapf(err, "desc: %s", n.Driver.Pos)
		}
	}

	for _, s := range n.Sinks {
		ref, err := d.resolve(s.Port)
		if err != nil {
			return err
		}
		user, err := nl.ConnectSink(id, ref)
		if err != nil {
			return errors.Wrapf(err, "desc: %s", s.Port.Pos)
		}
		if s.Delay != nil {
			d.Delays.SetRouteDelay(id, user, netlist.Delay(*s.Delay))
		}
	}
	return nil
}

func (d *Design) addSite(s *SiteDecl) error {
	site := Site{Name: s.Name, Element: s.Element}
	for _, p := range s.Places {
		if _, ok := d.Netlist.CellByName(p.Cell); !ok {
			return errors.Errorf("desc: %s: site %s places unknown cell %s", s.Pos, s.Name, p.Cell)
		}
		site.Placements = append(site.Placements, pack.Placement{Cell: p.Cell, Bel: p.Bel})
	}
	for _, other := range d.Sites {
		if other.Name == s.Name {
			return errors.Errorf("desc: %s: duplicate site %s", s.Pos, s.Name)
		}
	}
	d.Sites = append(d.Sites, site)
	return nil
}
