package grid

import (
	"github.com/pkg/errors"

	"github.com/NNPDF/pineappl-go/bins"
	"github.com/NNPDF/pineappl-go/channel"
	"github.com/NNPDF/pineappl-go/interp"
	"github.com/NNPDF/pineappl-go/internal/binio"
	"github.com/NNPDF/pineappl-go/subgrid"
)

func encodeBins(w *binio.Writer, bwfl bins.BinsWithFillLimits) error {
	limits := bwfl.FillLimits()
	if err := w.WriteUint32(uint32(len(limits))); err != nil {
		return err
	}
	for _, l := range limits {
		if err := w.WriteFloat64(l); err != nil {
			return err
		}
	}
	binList := bwfl.Bins()
	if err := w.WriteUint32(uint32(len(binList))); err != nil {
		return err
	}
	for _, b := range binList {
		if err := w.WriteUint32(uint32(len(b.Limits))); err != nil {
			return err
		}
		for _, lr := range b.Limits {
			if err := w.WriteFloat64(lr[0]); err != nil {
				return err
			}
			if err := w.WriteFloat64(lr[1]); err != nil {
				return err
			}
		}
		if err := w.WriteFloat64(b.Normalization); err != nil {
			return err
		}
	}
	return nil
}

func decodeBins(r *binio.Reader) (bins.BinsWithFillLimits, error) {
	nLimits, err := r.ReadUint32()
	if err != nil {
		return bins.BinsWithFillLimits{}, err
	}
	limits := make([]float64, nLimits)
	for i := range limits {
		if limits[i], err = r.ReadFloat64(); err != nil {
			return bins.BinsWithFillLimits{}, err
		}
	}
	nBins, err := r.ReadUint32()
	if err != nil {
		return bins.BinsWithFillLimits{}, err
	}
	binList := make([]bins.Bin, nBins)
	for i := range binList {
		nDim, err := r.ReadUint32()
		if err != nil {
			return bins.BinsWithFillLimits{}, err
		}
		b := bins.Bin{Limits: make([][2]float64, nDim)}
		for d := range b.Limits {
			left, err := r.ReadFloat64()
			if err != nil {
				return bins.BinsWithFillLimits{}, err
			}
			right, err := r.ReadFloat64()
			if err != nil {
				return bins.BinsWithFillLimits{}, err
			}
			b.Limits[d] = [2]float64{left, right}
		}
		if b.Normalization, err = r.ReadFloat64(); err != nil {
			return bins.BinsWithFillLimits{}, err
		}
		binList[i] = b
	}
	return bins.New(binList, limits)
}

func encodeOrder(w *binio.Writer, o channel.Order) error {
	for _, v := range []int{o.Alphas, o.Alpha, o.LogXiR, o.LogXiF, o.LogXiA} {
		if err := w.WriteInt32(int32(v)); err != nil {
			return err
		}
	}
	return nil
}

func decodeOrder(r *binio.Reader) (channel.Order, error) {
	vals := make([]int32, 5)
	for i := range vals {
		v, err := r.ReadInt32()
		if err != nil {
			return channel.Order{}, err
		}
		vals[i] = v
	}
	return channel.Order{
		Alphas: int(vals[0]), Alpha: int(vals[1]),
		LogXiR: int(vals[2]), LogXiF: int(vals[3]), LogXiA: int(vals[4]),
	}, nil
}

func encodeChannel(w *binio.Writer, c channel.Channel) error {
	terms := c.Terms()
	if err := w.WriteUint32(uint32(len(terms))); err != nil {
		return err
	}
	for _, t := range terms {
		if err := w.WriteUint32(uint32(len(t.PIDs))); err != nil {
			return err
		}
		for _, p := range t.PIDs {
			if err := w.WriteInt32(p); err != nil {
				return err
			}
		}
		if err := w.WriteFloat64(t.Coefficient); err != nil {
			return err
		}
	}
	return nil
}

func decodeChannel(r *binio.Reader) (channel.Channel, error) {
	nTerms, err := r.ReadUint32()
	if err != nil {
		return channel.Channel{}, err
	}
	terms := make([]channel.Term, nTerms)
	for i := range terms {
		nPids, err := r.ReadUint32()
		if err != nil {
			return channel.Channel{}, err
		}
		pids := make([]channel.PID, nPids)
		for j := range pids {
			if pids[j], err = r.ReadInt32(); err != nil {
				return channel.Channel{}, err
			}
		}
		coeff, err := r.ReadFloat64()
		if err != nil {
			return channel.Channel{}, err
		}
		terms[i] = channel.Term{PIDs: pids, Coefficient: coeff}
	}
	return channel.New(terms), nil
}

func encodeInterp(w *binio.Writer, ip interp.Interp) error {
	if err := w.WriteFloat64(ip.Min); err != nil {
		return err
	}
	if err := w.WriteFloat64(ip.Max); err != nil {
		return err
	}
	for _, v := range []int{ip.Nodes, ip.Order, int(ip.NodeMapping), int(ip.ReweightMeth), int(ip.InterpMeth)} {
		if err := w.WriteInt32(int32(v)); err != nil {
			return err
		}
	}
	return nil
}

func decodeInterp(r *binio.Reader) (interp.Interp, error) {
	min, err := r.ReadFloat64()
	if err != nil {
		return interp.Interp{}, err
	}
	max, err := r.ReadFloat64()
	if err != nil {
		return interp.Interp{}, err
	}
	vals := make([]int32, 5)
	for i := range vals {
		if vals[i], err = r.ReadInt32(); err != nil {
			return interp.Interp{}, err
		}
	}
	return interp.Interp{
		Min: min, Max: max,
		Nodes: int(vals[0]), Order: int(vals[1]),
		NodeMapping:  interp.Mapping(vals[2]),
		ReweightMeth: interp.ReweightMethod(vals[3]),
		InterpMeth:   interp.Method(vals[4]),
	}, nil
}

// Scale-form tags for the on-disk encoding.
const (
	scaleFormNoScale = iota
	scaleFormSingle
	scaleFormQuadraticSum
)

func encodeScaleForm(w *binio.Writer, form channel.ScaleFuncForm) error {
	switch f := form.(type) {
	case channel.NoScale:
		return w.WriteUint8(scaleFormNoScale)
	case channel.ScaleSingle:
		if err := w.WriteUint8(scaleFormSingle); err != nil {
			return err
		}
		return w.WriteInt32(int32(f.Index))
	case channel.QuadraticSum:
		if err := w.WriteUint8(scaleFormQuadraticSum); err != nil {
			return err
		}
		if err := w.WriteInt32(int32(f.I)); err != nil {
			return err
		}
		return w.WriteInt32(int32(f.J))
	default:
		return errors.Errorf("grid: unknown ScaleFuncForm %T", form)
	}
}

func decodeScaleForm(r *binio.Reader) (channel.ScaleFuncForm, error) {
	tag, err := r.ReadUint8()
	if err != nil {
		return nil, err
	}
	switch tag {
	case scaleFormNoScale:
		return channel.NoScale{}, nil
	case scaleFormSingle:
		idx, err := r.ReadInt32()
		if err != nil {
			return nil, err
		}
		return channel.ScaleSingle{Index: int(idx)}, nil
	case scaleFormQuadraticSum:
		i, err := r.ReadInt32()
		if err != nil {
			return nil, err
		}
		j, err := r.ReadInt32()
		if err != nil {
			return nil, err
		}
		return channel.QuadraticSum{I: int(i), J: int(j)}, nil
	default:
		return nil, errors.Errorf("grid: unknown scale form tag %d", tag)
	}
}

// Subgrid tags for the on-disk encoding.
const (
	subgridTagEmpty = iota
	subgridTagInterp
	subgridTagImport
)

func encodeSubgrid(w *binio.Writer, sg subgrid.Subgrid) error {
	switch s := sg.(type) {
	case subgrid.Empty:
		return w.WriteUint8(subgridTagEmpty)
	case *subgrid.Interp:
		if err := w.WriteUint8(subgridTagInterp); err != nil {
			return err
		}
		if err := w.WriteUint32(uint32(len(s.Interps))); err != nil {
			return err
		}
		for _, ip := range s.Interps {
			if err := encodeInterp(w, ip); err != nil {
				return err
			}
		}
		return encodeEntries(w, s.IndexedIterRaw())
	case *subgrid.Import:
		if err := w.WriteUint8(subgridTagImport); err != nil {
			return err
		}
		nv := s.NodeValues()
		if err := w.WriteUint32(uint32(len(nv))); err != nil {
			return err
		}
		for _, axis := range nv {
			if err := w.WriteUint32(uint32(len(axis))); err != nil {
				return err
			}
			for _, v := range axis {
				if err := w.WriteFloat64(v); err != nil {
					return err
				}
			}
		}
		return encodeEntries(w, s.IndexedIter())
	default:
		return errors.Errorf("grid: unknown subgrid type %T", sg)
	}
}

func encodeEntries(w *binio.Writer, entries []subgrid.Entry) error {
	if err := w.WriteUint32(uint32(len(entries))); err != nil {
		return err
	}
	for _, e := range entries {
		if err := w.WriteUint32(uint32(len(e.Index))); err != nil {
			return err
		}
		for _, idx := range e.Index {
			if err := w.WriteUint32(uint32(idx)); err != nil {
				return err
			}
		}
		if err := w.WriteFloat64(e.Value); err != nil {
			return err
		}
	}
	return nil
}

func decodeEntries(r *binio.Reader) ([]subgrid.Entry, error) {
	n, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	out := make([]subgrid.Entry, n)
	for i := range out {
		nDim, err := r.ReadUint32()
		if err != nil {
			return nil, err
		}
		idx := make([]int, nDim)
		for d := range idx {
			v, err := r.ReadUint32()
			if err != nil {
				return nil, err
			}
			idx[d] = int(v)
		}
		val, err := r.ReadFloat64()
		if err != nil {
			return nil, err
		}
		out[i] = subgrid.Entry{Index: idx, Value: val}
	}
	return out, nil
}

func decodeSubgrid(r *binio.Reader, gridInterps []interp.Interp) (subgrid.Subgrid, error) {
	tag, err := r.ReadUint8()
	if err != nil {
		return nil, err
	}
	switch tag {
	case subgridTagEmpty:
		return subgrid.Empty{}, nil
	case subgridTagInterp:
		n, err := r.ReadUint32()
		if err != nil {
			return nil, err
		}
		ips := make([]interp.Interp, n)
		for i := range ips {
			if ips[i], err = decodeInterp(r); err != nil {
				return nil, err
			}
		}
		entries, err := decodeEntries(r)
		if err != nil {
			return nil, err
		}
		sg := subgrid.NewInterp(ips)
		sg.SetRaw(entries)
		return sg, nil
	case subgridTagImport:
		nAxes, err := r.ReadUint32()
		if err != nil {
			return nil, err
		}
		nodeValues := make([][]float64, nAxes)
		for a := range nodeValues {
			n, err := r.ReadUint32()
			if err != nil {
				return nil, err
			}
			axis := make([]float64, n)
			for i := range axis {
				if axis[i], err = r.ReadFloat64(); err != nil {
					return nil, err
				}
			}
			nodeValues[a] = axis
		}
		entries, err := decodeEntries(r)
		if err != nil {
			return nil, err
		}
		sg := subgrid.NewImport(nodeValues)
		for _, e := range entries {
			*sg.IndexMut(e.Index) = e.Value
		}
		return sg, nil
	default:
		return nil, errors.Errorf("grid: unknown subgrid tag %d", tag)
	}
}
