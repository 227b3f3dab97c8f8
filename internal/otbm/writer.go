package otbm

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
)

// nodeWriter пишет узлы в буфер, экранируя управляющие байты данных
type nodeWriter struct {
	buf   bytes.Buffer
	depth int
	tmp   [8]byte
}

func (w *nodeWriter) startNode(t NodeType) {
	w.buf.WriteByte(NodeStart)
	w.buf.WriteByte(byte(t))
	w.depth++
}

func (w *nodeWriter) endNode() {
	w.buf.WriteByte(NodeEnd)
	w.depth--
}

func (w *nodeWriter) writeRaw(p []byte) {
	for _, b := range p {
		if b == NodeStart || b == NodeEnd || b == NodeEscape {
			w.buf.WriteByte(NodeEscape)
		}
		w.buf.WriteByte(b)
	}
}

func (w *nodeWriter) writeU8(v uint8) {
	w.tmp[0] = v
	w.writeRaw(w.tmp[:1])
}

func (w *nodeWriter) writeU16(v uint16) {
	binary.LittleEndian.PutUint16(w.tmp[:2], v)
	w.writeRaw(w.tmp[:2])
}

func (w *nodeWriter) writeU32(v uint32) {
	binary.LittleEndian.PutUint32(w.tmp[:4], v)
	w.writeRaw(w.tmp[:4])
}

func (w *nodeWriter) writeU64(v uint64) {
	binary.LittleEndian.PutUint64(w.tmp[:8], v)
	w.writeRaw(w.tmp[:8])
}

func (w *nodeWriter) writeF64(v float64) {
	w.writeU64(math.Float64bits(v))
}

// writeString пишет строку с длиной u16
func (w *nodeWriter) writeString(s string) error {
	if len(s) > maxShortString {
		return fmt.Errorf("%w: %d байт (максимум %d)", ErrStringTooLong, len(s), maxShortString)
	}
	w.writeU16(uint16(len(s)))
	w.writeRaw([]byte(s))
	return nil
}

// writeLongString пишет строку с длиной u32
func (w *nodeWriter) writeLongString(s string) error {
	if uint64(len(s)) > maxLongString {
		return fmt.Errorf("%w: %d байт (максимум %d)", ErrStringTooLong, len(s), uint64(maxLongString))
	}
	w.writeU32(uint32(len(s)))
	w.writeRaw([]byte(s))
	return nil
}

func (w *nodeWriter) bytes() []byte { return w.buf.Bytes() }
