package jacobi

import (
	"fmt"

	"github.com/pkg/errors"
)

// HaloExchanger refreshes the ghost planes on either side of the split
// after a sweep. It works on the Next buffers, before the roles swap:
// lower's last interior plane goes to upper's lower ghost plane and
// upper's first interior plane goes to lower's upper ghost plane.
//
// Exchange must not return until both ghost planes hold the new values.
type HaloExchanger interface {
	Exchange(lower, upper *Slab) error
}

// StagedExchanger routes each plane device -> host -> device through one
// host buffer of a single plane. It needs nothing from the devices beyond
// Memcpy and is the fallback for every other exchanger.
type StagedExchanger struct {
	staging []float64
}

// NewStagedExchanger returns an exchanger with no staging buffer yet; the
// buffer is sized on first use and reused afterwards.
func NewStagedExchanger() *StagedExchanger {
	return &StagedExchanger{}
}

func (x *StagedExchanger) Exchange(lower, upper *Slab) error {
	n, err := planeLen(lower, upper)
	if err != nil {
		return err
	}
	if cap(x.staging) < n {
		x.staging = make([]float64, n)
	}
	buf := x.staging[:n]

	if err := stage(buf, lower, lower.Interior(), upper, 0); err != nil {
		return err
	}
	return stage(buf, upper, 1, lower, lower.Interior()+1)
}

// stage copies plane srcPlane of src.Next() into plane dstPlane of
// dst.Next() through buf.
func stage(buf []float64, src *Slab, srcPlane int, dst *Slab, dstPlane int) error {
	n := len(buf)
	if err := src.ctx.Memcpy(buf, src.Plane(src.Next(), srcPlane), n, MemcpyDeviceToHost); err != nil {
		return errors.Wrapf(err, "halo: read plane %d of slab %d", srcPlane, src.Index)
	}
	if err := dst.ctx.Memcpy(dst.Plane(dst.Next(), dstPlane), buf, n, MemcpyHostToDevice); err != nil {
		return errors.Wrapf(err, "halo: write plane %d of slab %d", dstPlane, dst.Index)
	}
	return nil
}

// PeerExchanger copies planes directly between the two devices when each
// has peer access to the other, and falls back to host staging otherwise.
type PeerExchanger struct {
	fallback StagedExchanger
}

// NewPeerExchanger returns a direct-copy exchanger
func NewPeerExchanger() *PeerExchanger {
	return &PeerExchanger{}
}

func (x *PeerExchanger) Exchange(lower, upper *Slab) error {
	if !lower.ctx.CanAccessPeer(upper.ctx) || !upper.ctx.CanAccessPeer(lower.ctx) {
		return x.fallback.Exchange(lower, upper)
	}
	n, err := planeLen(lower, upper)
	if err != nil {
		return err
	}

	nx := lower.Interior()
	err = upper.ctx.MemcpyPeer(upper.Plane(upper.Next(), 0), lower.Plane(lower.Next(), nx), lower.ctx, n)
	if err != nil {
		return errors.Wrapf(err, "halo: peer copy into slab %d", upper.Index)
	}
	err = lower.ctx.MemcpyPeer(lower.Plane(lower.Next(), nx+1), upper.Plane(upper.Next(), 1), upper.ctx, n)
	if err != nil {
		return errors.Wrapf(err, "halo: peer copy into slab %d", lower.Index)
	}
	return nil
}

func planeLen(lower, upper *Slab) (int, error) {
	if lower.PlaneLen() != upper.PlaneLen() {
		return 0, NewInvalidArgError("HaloExchange",
			fmt.Sprintf("plane sizes differ: %d vs %d", lower.PlaneLen(), upper.PlaneLen()))
	}
	return lower.PlaneLen(), nil
}
