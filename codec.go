package rmi

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"

	"github.com/weldarc/rmi/internal/packet"
)

// maxFrameSize bounds a single newline-delimited frame. The vendor
// protocol never sends anything close to this; it exists purely to
// keep a misbehaving peer from growing the scanner's buffer without
// bound.
const maxFrameSize = 1 << 20

// wireWriter serializes a packet.Request as a single newline-delimited
// JSON frame, mirroring the teacher's BuildFrame but for the
// controller's own framing (length-prefix binary framing has no place
// here: the vendor wire is JSON-over-newlines, fixed by the
// controller).
type wireWriter struct {
	w io.Writer
}

func newWireWriter(w io.Writer) *wireWriter { return &wireWriter{w: w} }

// writeFrame marshals req and writes it followed by '\n'. It returns
// the number of payload bytes written (excluding the newline) for
// metrics accounting.
func (ww *wireWriter) writeFrame(req packet.Request) (int, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return 0, fmt.Errorf("rmi: encode %s.%s: %w", req.Family(), req.OpName(), err)
	}
	body = append(body, '\n')
	n, err := ww.w.Write(body)
	if err != nil {
		return n, err
	}
	return len(body) - 1, nil
}

// wireReader reads newline-delimited JSON frames and classifies them
// into packet.Response variants.
type wireReader struct {
	scanner *bufio.Scanner
}

func newWireReader(r io.Reader) *wireReader {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 4096), maxFrameSize)
	return &wireReader{scanner: s}
}

// readFrame returns the next decoded response, the raw line it came
// from (for DecodeError reporting), and an error. io.EOF signals a
// clean close by the peer.
func (wr *wireReader) readFrame() (packet.Response, []byte, error) {
	if !wr.scanner.Scan() {
		if err := wr.scanner.Err(); err != nil {
			return nil, nil, err
		}
		return nil, nil, io.EOF
	}
	line := wr.scanner.Bytes()
	lineCopy := make([]byte, len(line))
	copy(lineCopy, line)

	resp, err := packet.Decode(lineCopy)
	if err != nil {
		return nil, lineCopy, err
	}
	return resp, lineCopy, nil
}
