package realtime

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/desertthunder/catx/internal/shared"
)

// STOMP commands used by the client.
const (
	CmdConnect     = "CONNECT"
	CmdConnected   = "CONNECTED"
	CmdSubscribe   = "SUBSCRIBE"
	CmdUnsubscribe = "UNSUBSCRIBE"
	CmdDisconnect  = "DISCONNECT"
	CmdMessage     = "MESSAGE"
	CmdReceipt     = "RECEIPT"
	CmdError       = "ERROR"
)

// Header is one STOMP header line. Order is kept because repeated headers resolve to the first.
type Header struct {
	Key   string
	Value string
}

// Frame is a STOMP 1.2 frame.
type Frame struct {
	Command string
	Headers []Header
	Body    []byte
}

// NewFrame builds a frame from alternating key/value header pairs.
func NewFrame(command string, kv ...string) *Frame {
	f := &Frame{Command: command}
	for i := 0; i+1 < len(kv); i += 2 {
		f.Headers = append(f.Headers, Header{Key: kv[i], Value: kv[i+1]})
	}
	return f
}

// Get returns the first value of header key.
func (f *Frame) Get(key string) (string, bool) {
	for _, h := range f.Headers {
		if h.Key == key {
			return h.Value, true
		}
	}
	return "", false
}

// Err converts an ERROR frame into an error wrapping [shared.ErrBrokerFrame].
func (f *Frame) Err() error {
	msg, _ := f.Get("message")
	if msg == "" {
		msg = strings.TrimSpace(string(f.Body))
	}
	return fmt.Errorf("%w: %s", shared.ErrBrokerFrame, msg)
}

// Marshal encodes f, NUL terminated. CONNECT and CONNECTED headers are written unescaped.
func (f *Frame) Marshal() []byte {
	var buf bytes.Buffer
	buf.WriteString(f.Command)
	buf.WriteByte('\n')

	raw := f.Command == CmdConnect || f.Command == CmdConnected
	for _, h := range f.Headers {
		if raw {
			buf.WriteString(h.Key + ":" + h.Value)
		} else {
			buf.WriteString(escape(h.Key) + ":" + escape(h.Value))
		}
		buf.WriteByte('\n')
	}
	if len(f.Body) > 0 {
		if _, ok := f.Get("content-length"); !ok {
			buf.WriteString("content-length:" + strconv.Itoa(len(f.Body)) + "\n")
		}
	}
	buf.WriteByte('\n')
	buf.Write(f.Body)
	buf.WriteByte(0)
	return buf.Bytes()
}

// Unmarshal decodes a single frame. A payload of only end-of-line bytes is a heart-beat and
// yields (nil, nil).
func Unmarshal(data []byte) (*Frame, error) {
	data = bytes.TrimLeft(data, "\r\n")
	if len(data) == 0 {
		return nil, nil
	}

	headEnd := bytes.Index(data, []byte("\n\n"))
	sep := 2
	if crlf := bytes.Index(data, []byte("\r\n\r\n")); crlf >= 0 && (headEnd < 0 || crlf < headEnd) {
		headEnd, sep = crlf, 4
	}
	if headEnd < 0 {
		return nil, fmt.Errorf("%w: missing header terminator", shared.ErrBrokerFrame)
	}

	lines := strings.Split(strings.ReplaceAll(string(data[:headEnd]), "\r\n", "\n"), "\n")
	f := &Frame{Command: lines[0]}
	raw := f.Command == CmdConnect || f.Command == CmdConnected

	for _, line := range lines[1:] {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			return nil, fmt.Errorf("%w: malformed header %q", shared.ErrBrokerFrame, line)
		}
		if !raw {
			key, value = unescape(key), unescape(value)
		}
		f.Headers = append(f.Headers, Header{Key: key, Value: value})
	}

	body := data[headEnd+sep:]
	if cl, ok := f.Get("content-length"); ok {
		n, err := strconv.Atoi(cl)
		if err != nil || n < 0 || n > len(body) {
			return nil, fmt.Errorf("%w: bad content-length %q", shared.ErrBrokerFrame, cl)
		}
		body = body[:n]
	} else if i := bytes.IndexByte(body, 0); i >= 0 {
		body = body[:i]
	}
	f.Body = body
	return f, nil
}

var (
	escaper   = strings.NewReplacer("\\", `\\`, "\r", `\r`, "\n", `\n`, ":", `\c`)
	unescaper = strings.NewReplacer(`\\`, "\\", `\r`, "\r", `\n`, "\n", `\c`, ":")
)

func escape(s string) string   { return escaper.Replace(s) }
func unescape(s string) string { return unescaper.Replace(s) }
