package snapshot

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/openfleet/avltracker/core/model"
)

// WireVersion is the snapshot wire format version this codec supports.
// Producers and consumers must run the same version; there is no partial or
// legacy-compatible decoding.
const WireVersion uint16 = 1

// VersionError reports a payload whose version tag does not match
// WireVersion. It is non-retryable and signals a client/server version
// mismatch to be resolved out-of-band.
type VersionError struct {
	Got uint16
}

func (e *VersionError) Error() string {
	return fmt.Sprintf("snapshot wire version %d, codec supports %d", e.Got, WireVersion)
}

// ErrTruncated reports a payload that ended before all fields were read.
var ErrTruncated = errors.New("truncated snapshot payload")

// Encode serializes the snapshot as the versioned wire envelope: the version
// tag first, then every field in fixed order.
func Encode(s Snapshot) ([]byte, error) {
	w := &wireWriter{}

	w.u16(WireVersion)
	w.str(s.blockID)
	w.u8(uint8(s.assignmentMethod))

	w.str(s.avl.VehicleID)
	w.i64(s.avl.Time)
	w.f32(s.avl.Lat)
	w.f32(s.avl.Lon)
	w.f32(s.avl.Heading)
	w.f32(s.avl.Speed)
	w.str(s.avl.AssignmentID)

	w.f32(headingWire(s.heading))
	w.str(s.routeID)
	w.str(s.routeShortName)
	w.str(s.tripID)
	w.str(s.tripPatternID)
	w.str(s.directionID)
	w.str(s.headsign)
	w.bool(s.predictable)
	w.bool(s.schedBasedPred)
	w.bool(s.hasAdherence)
	if s.hasAdherence {
		w.i64(s.schedAdherence.Millis)
	}
	w.bool(s.isLayover)
	w.i64(s.layoverDepartureTime)
	w.str(s.nextStopID)
	w.str(s.vehicleType)

	return w.buf.Bytes(), w.err
}

// Decode reconstructs a Snapshot from the versioned wire envelope. This is
// the only way a Snapshot can be materialized from bytes: a payload whose
// version tag is wrong fails with a VersionError and yields no partial
// snapshot.
func Decode(data []byte) (Snapshot, error) {
	r := &wireReader{r: bytes.NewReader(data)}

	version := r.u16()
	if r.err != nil {
		return Snapshot{}, r.err
	}
	if version != WireVersion {
		return Snapshot{}, &VersionError{Got: version}
	}

	var s Snapshot
	s.blockID = r.str()
	s.assignmentMethod = model.AssignmentMethod(r.u8())

	s.avl.VehicleID = r.str()
	s.avl.Time = r.i64()
	s.avl.Lat = r.f32()
	s.avl.Lon = r.f32()
	s.avl.Heading = r.f32()
	s.avl.Speed = r.f32()
	s.avl.AssignmentID = r.str()

	s.heading = headingFromWire(r.f32())
	s.routeID = r.str()
	s.routeShortName = r.str()
	s.tripID = r.str()
	s.tripPatternID = r.str()
	s.directionID = r.str()
	s.headsign = r.str()
	s.predictable = r.bool()
	s.schedBasedPred = r.bool()
	s.hasAdherence = r.bool()
	if r.err == nil && s.hasAdherence {
		s.schedAdherence = model.ScheduleAdherence{Millis: r.i64()}
	}
	s.isLayover = r.bool()
	s.layoverDepartureTime = r.i64()
	s.nextStopID = r.str()
	s.vehicleType = r.str()

	if r.err != nil {
		return Snapshot{}, r.err
	}
	return s, nil
}

// headingWire converts an optional heading to its wire form, NaN for
// undefined. NaN never appears for a defined heading.
func headingWire(h model.Heading) float32 {
	if !h.Valid {
		return float32(math.NaN())
	}
	return h.Degrees
}

func headingFromWire(v float32) model.Heading {
	if math.IsNaN(float64(v)) {
		return model.Heading{}
	}
	return model.HeadingOf(v)
}

type wireWriter struct {
	buf bytes.Buffer
	err error
}

func (w *wireWriter) write(v any) {
	if w.err != nil {
		return
	}
	w.err = binary.Write(&w.buf, binary.BigEndian, v)
}

func (w *wireWriter) u8(v uint8)   { w.write(v) }
func (w *wireWriter) u16(v uint16) { w.write(v) }
func (w *wireWriter) i64(v int64)  { w.write(v) }
func (w *wireWriter) f32(v float32) {
	w.write(math.Float32bits(v))
}

func (w *wireWriter) bool(v bool) {
	if v {
		w.u8(1)
	} else {
		w.u8(0)
	}
}

func (w *wireWriter) str(s string) {
	if len(s) > math.MaxUint16 {
		if w.err == nil {
			w.err = fmt.Errorf("string field of %d bytes exceeds wire limit", len(s))
		}
		return
	}
	w.u16(uint16(len(s)))
	if w.err == nil {
		w.buf.WriteString(s)
	}
}

type wireReader struct {
	r   *bytes.Reader
	err error
}

func (r *wireReader) read(v any) {
	if r.err != nil {
		return
	}
	if err := binary.Read(r.r, binary.BigEndian, v); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			err = ErrTruncated
		}
		r.err = err
	}
}

func (r *wireReader) u8() uint8 {
	var v uint8
	r.read(&v)
	return v
}

func (r *wireReader) u16() uint16 {
	var v uint16
	r.read(&v)
	return v
}

func (r *wireReader) i64() int64 {
	var v int64
	r.read(&v)
	return v
}

func (r *wireReader) f32() float32 {
	var bits uint32
	r.read(&bits)
	return math.Float32frombits(bits)
}

func (r *wireReader) bool() bool {
	return r.u8() != 0
}

func (r *wireReader) str() string {
	n := r.u16()
	if r.err != nil || n == 0 {
		return ""
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r.r, b); err != nil {
		r.err = ErrTruncated
		return ""
	}
	return string(b)
}
