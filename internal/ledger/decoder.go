package ledger

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"math/big"
	"strings"

	"github.com/mr-tron/base58"
)

// logDataPrefix marks lines that carry an embedded event payload.
const logDataPrefix = "Program data: "

// Decoder extracts schema events from raw transaction log lines.
type Decoder struct {
	schema *Schema
}

func NewDecoder(schema *Schema) *Decoder {
	return &Decoder{schema: schema}
}

// Decode scans one transaction's log lines for embedded events. Lines without
// the data marker are ignored; marked lines that fail to decode are skipped
// and counted, never fatal. A batch with no events yields an empty slice.
func (d *Decoder) Decode(signature string, logs []string) (events []Event, skipped int) {
	for _, line := range logs {
		idx := strings.Index(line, logDataPrefix)
		if idx < 0 {
			continue
		}
		payload, err := base64.StdEncoding.DecodeString(line[idx+len(logDataPrefix):])
		if err != nil {
			skipped++
			continue
		}
		ev, err := d.decodeEvent(payload)
		if err != nil {
			skipped++
			continue
		}
		events = append(events, ev)
	}
	return events, skipped
}

func (d *Decoder) decodeEvent(payload []byte) (Event, error) {
	if len(payload) < 8 {
		return Event{}, fmt.Errorf("payload too short for discriminator: %d bytes", len(payload))
	}
	var disc [8]byte
	copy(disc[:], payload[:8])
	layout, ok := d.schema.layouts[disc]
	if !ok {
		return Event{}, fmt.Errorf("unknown event discriminator %x", disc)
	}

	fields := make(map[string]Value, len(layout.fields))
	rest := payload[8:]
	for _, f := range layout.fields {
		v, n, err := decodeField(f.Type, rest)
		if err != nil {
			return Event{}, fmt.Errorf("event %s field %s: %w", layout.name, f.Name, err)
		}
		fields[f.Name] = v
		rest = rest[n:]
	}
	return Event{Name: layout.name, Fields: fields}, nil
}

// decodeField walks one little-endian field, returning the value and the
// number of bytes consumed.
func decodeField(t fieldType, data []byte) (Value, int, error) {
	if size, fixed := fieldSizes[t]; fixed && len(data) < size {
		return Value{}, 0, fmt.Errorf("need %d bytes, have %d", size, len(data))
	}
	switch t {
	case typePublicKey:
		return addressValue(base58.Encode(data[:32])), 32, nil
	case typeU8:
		return uintValue(new(big.Int).SetUint64(uint64(data[0]))), 1, nil
	case typeU16:
		return uintValue(new(big.Int).SetUint64(uint64(binary.LittleEndian.Uint16(data)))), 2, nil
	case typeU32:
		return uintValue(new(big.Int).SetUint64(uint64(binary.LittleEndian.Uint32(data)))), 4, nil
	case typeU64:
		return uintValue(new(big.Int).SetUint64(binary.LittleEndian.Uint64(data))), 8, nil
	case typeU128:
		// stored little-endian; big.Int wants big-endian bytes
		be := make([]byte, 16)
		for i := 0; i < 16; i++ {
			be[i] = data[15-i]
		}
		return uintValue(new(big.Int).SetBytes(be)), 16, nil
	case typeI64:
		return intValue(big.NewInt(int64(binary.LittleEndian.Uint64(data)))), 8, nil
	case typeBool:
		return boolValue(data[0] != 0), 1, nil
	case typeString:
		raw, n, err := decodeLenPrefixed(data)
		if err != nil {
			return Value{}, 0, err
		}
		return stringValue(string(raw)), n, nil
	case typeBytes:
		raw, n, err := decodeLenPrefixed(data)
		if err != nil {
			return Value{}, 0, err
		}
		out := make([]byte, len(raw))
		copy(out, raw)
		return bytesValue(out), n, nil
	default:
		return Value{}, 0, fmt.Errorf("unsupported field type %q", t)
	}
}

func decodeLenPrefixed(data []byte) ([]byte, int, error) {
	if len(data) < 4 {
		return nil, 0, fmt.Errorf("truncated length prefix")
	}
	n := int(binary.LittleEndian.Uint32(data))
	if n < 0 || len(data) < 4+n {
		return nil, 0, fmt.Errorf("declared length %d exceeds remaining %d bytes", n, len(data)-4)
	}
	return data[4 : 4+n], 4 + n, nil
}
