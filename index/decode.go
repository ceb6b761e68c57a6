package index

import (
	"fmt"
	"time"

	"github.com/wbrown/datomstore/codec"
	"github.com/wbrown/datomstore/datom"
)

// DecodeKey recovers (e, aid, v) from an index key given which index
// it came from. If the underlying entry is giant, V here is only the
// truncated key-resident prefix of the real value; callers must
// consult the entry's index value (DecodeIndexValue) and, if giant,
// fetch the true value from Giants.
func DecodeKey(kind Kind, key []byte) (Retrieved, error) {
	switch kind {
	case EAV:
		if len(key) < headerSize+1 {
			return Retrieved{}, ErrShortKey
		}
		e := codec.DecodeOrderedUint64(key[0:8])
		aid := codec.DecodeOrderedUint32(key[8:12])
		v, err := decodeValueSlot(key[12:])
		if err != nil {
			return Retrieved{}, err
		}
		return Retrieved{E: e, Aid: aid, V: v}, nil

	case AVE:
		if len(key) < headerSize+1 {
			return Retrieved{}, ErrShortKey
		}
		aid := codec.DecodeOrderedUint32(key[0:4])
		e := codec.DecodeOrderedUint64(key[len(key)-8:])
		v, err := decodeValueSlot(key[4 : len(key)-8])
		if err != nil {
			return Retrieved{}, err
		}
		return Retrieved{E: e, Aid: aid, V: v}, nil

	case VEA:
		if len(key) < headerSize+1 {
			return Retrieved{}, ErrShortKey
		}
		e := codec.DecodeOrderedUint64(key[len(key)-12 : len(key)-4])
		aid := codec.DecodeOrderedUint32(key[len(key)-4:])
		v, err := decodeValueSlot(key[:len(key)-12])
		if err != nil {
			return Retrieved{}, err
		}
		return Retrieved{E: e, Aid: aid, V: v}, nil

	default:
		return Retrieved{}, fmt.Errorf("index: unknown kind %v", kind)
	}
}

func decodeValueSlot(slot []byte) (datom.Value, error) {
	if len(slot) < 1 {
		return nil, ErrShortKey
	}
	tag := datom.ValueType(slot[0])
	payload := slot[1:]

	switch tag {
	case datom.SysMin:
		return datom.SysMinValue, nil
	case datom.SysMax:
		return datom.SysMaxValue, nil
	case datom.TypeLong:
		return codec.DecodeOrderedInt64(payload), nil
	case datom.TypeDouble:
		return codec.DecodeOrderedFloat64(payload), nil
	case datom.TypeRef:
		return datom.Ref(codec.DecodeOrderedUint64(payload)), nil
	case datom.TypeInstant:
		return time.Unix(0, codec.DecodeOrderedInt64(payload)).UTC(), nil
	case datom.TypeBool:
		return payload[0] != 0, nil
	case datom.TypeString:
		return string(unescapeValue(payload)), nil
	case datom.TypeKeyword:
		return datom.Keyword(unescapeValue(payload)), nil
	case datom.TypeSymbol:
		return datom.Symbol(unescapeValue(payload)), nil
	case datom.TypeUUID:
		var u datom.UUID
		copy(u[:], payload)
		return u, nil
	case datom.TypeBytes:
		return unescapeValue(payload), nil
	default:
		return nil, fmt.Errorf("index: unknown value tag %v", tag)
	}
}
