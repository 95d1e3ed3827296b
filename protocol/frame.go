// Package protocol frames rayon's link-layer traffic. A frame is either a
// bundle of route advertisements or an opaque data packet; the tag lets the
// receiver classify without inspecting the payload.
package protocol

import (
	"fmt"
	"net/netip"

	"github.com/encodeous/rayon/state"
	"google.golang.org/protobuf/encoding/protowire"
)

type Kind uint8

const (
	KindAdvertisement Kind = 1
	KindData          Kind = 2
)

// Advertisement is one (destination, distance) unit announced to neighbours.
type Advertisement struct {
	Dest   netip.Prefix
	Metric uint8
}

type Frame struct {
	Kind Kind
	// Adv is set for KindAdvertisement frames
	Adv []Advertisement
	// Dst and Payload are set for KindData frames
	Dst     netip.Addr
	Payload []byte
}

const (
	fieldKind    = protowire.Number(1)
	fieldAdv     = protowire.Number(2)
	fieldDst     = protowire.Number(3)
	fieldPayload = protowire.Number(4)

	advFieldDest   = protowire.Number(1)
	advFieldMetric = protowire.Number(2)
)

func appendAdvertisement(b []byte, adv Advertisement) ([]byte, error) {
	dest, err := adv.Dest.MarshalBinary()
	if err != nil {
		return nil, err
	}
	inner := protowire.AppendTag(nil, advFieldDest, protowire.BytesType)
	inner = protowire.AppendBytes(inner, dest)
	inner = protowire.AppendTag(inner, advFieldMetric, protowire.VarintType)
	inner = protowire.AppendVarint(inner, uint64(adv.Metric))

	b = protowire.AppendTag(b, fieldAdv, protowire.BytesType)
	return protowire.AppendBytes(b, inner), nil
}

func (f *Frame) MarshalBinary() ([]byte, error) {
	b := protowire.AppendTag(nil, fieldKind, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(f.Kind))
	switch f.Kind {
	case KindAdvertisement:
		for _, adv := range f.Adv {
			var err error
			b, err = appendAdvertisement(b, adv)
			if err != nil {
				return nil, err
			}
		}
	case KindData:
		dst, err := f.Dst.MarshalBinary()
		if err != nil {
			return nil, err
		}
		b = protowire.AppendTag(b, fieldDst, protowire.BytesType)
		b = protowire.AppendBytes(b, dst)
		b = protowire.AppendTag(b, fieldPayload, protowire.BytesType)
		b = protowire.AppendBytes(b, f.Payload)
	default:
		return nil, fmt.Errorf("unknown frame kind %d", f.Kind)
	}
	return b, nil
}

func consumeAdvertisement(b []byte) (Advertisement, error) {
	adv := Advertisement{Metric: state.Infinity}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return adv, protowire.ParseError(n)
		}
		b = b[n:]
		switch {
		case num == advFieldDest && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return adv, protowire.ParseError(n)
			}
			if err := adv.Dest.UnmarshalBinary(v); err != nil {
				return adv, err
			}
			b = b[n:]
		case num == advFieldMetric && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return adv, protowire.ParseError(n)
			}
			// distances at or beyond the sentinel collapse to it
			adv.Metric = uint8(min(v, uint64(state.Infinity)))
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return adv, protowire.ParseError(n)
			}
			b = b[n:]
		}
	}
	if !adv.Dest.IsValid() {
		return adv, fmt.Errorf("advertisement carries no destination")
	}
	return adv, nil
}

func (f *Frame) UnmarshalBinary(b []byte) error {
	*f = Frame{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
		switch {
		case num == fieldKind && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			f.Kind = Kind(v)
			b = b[n:]
		case num == fieldAdv && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			adv, err := consumeAdvertisement(v)
			if err != nil {
				return err
			}
			f.Adv = append(f.Adv, adv)
			b = b[n:]
		case num == fieldDst && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			if err := f.Dst.UnmarshalBinary(v); err != nil {
				return err
			}
			b = b[n:]
		case num == fieldPayload && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			f.Payload = append([]byte(nil), v...)
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			b = b[n:]
		}
	}
	switch f.Kind {
	case KindAdvertisement, KindData:
		return nil
	default:
		return fmt.Errorf("unknown frame kind %d", f.Kind)
	}
}

// BundleAdvertisements packs advertisements into as few frames as fit within
// mtu, so one interface pass does not fragment on the wire.
func BundleAdvertisements(advs []Advertisement, mtu int) ([][]byte, error) {
	frames := make([][]byte, 0, 1)
	cur := protowire.AppendTag(nil, fieldKind, protowire.VarintType)
	cur = protowire.AppendVarint(cur, uint64(KindAdvertisement))
	header := len(cur)
	perFrame := 0
	for _, adv := range advs {
		next, err := appendAdvertisement(cur, adv)
		if err != nil {
			return nil, err
		}
		if len(next) > mtu && perFrame > 0 {
			frames = append(frames, cur)
			cur = protowire.AppendTag(nil, fieldKind, protowire.VarintType)
			cur = protowire.AppendVarint(cur, uint64(KindAdvertisement))
			next, err = appendAdvertisement(cur, adv)
			if err != nil {
				return nil, err
			}
			perFrame = 0
		}
		cur = next
		perFrame++
	}
	if len(cur) > header {
		frames = append(frames, cur)
	}
	return frames, nil
}
