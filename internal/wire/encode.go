package wire

import (
	"bytes"
	"strconv"
)

// EncodeConnect formats a CONNECT frame from an already-marshaled JSON
// payload.
func EncodeConnect(json []byte) []byte {
	var buf bytes.Buffer
	buf.WriteString("CONNECT ")
	buf.Write(json)
	buf.WriteString("\r\n")
	return buf.Bytes()
}

// EncodePing formats a PING frame.
func EncodePing() []byte { return []byte("PING\r\n") }

// EncodePong formats a PONG frame.
func EncodePong() []byte { return []byte("PONG\r\n") }

// EncodeSub formats a SUB frame. queue may be empty.
func EncodeSub(subject, queue string, sid int64) []byte {
	var buf bytes.Buffer
	buf.WriteString("SUB ")
	buf.WriteString(subject)
	buf.WriteByte(' ')
	if queue != "" {
		buf.WriteString(queue)
		buf.WriteByte(' ')
	}
	buf.WriteString(strconv.FormatInt(sid, 10))
	buf.WriteString("\r\n")
	return buf.Bytes()
}

// EncodeUnsub formats an UNSUB frame. maxMsgs < 0 omits the optional field.
func EncodeUnsub(sid int64, maxMsgs int64) []byte {
	var buf bytes.Buffer
	buf.WriteString("UNSUB ")
	buf.WriteString(strconv.FormatInt(sid, 10))
	if maxMsgs >= 0 {
		buf.WriteByte(' ')
		buf.WriteString(strconv.FormatInt(maxMsgs, 10))
	}
	buf.WriteString("\r\n")
	return buf.Bytes()
}

// EncodePub formats a PUB frame followed by its payload.
func EncodePub(subject, reply string, payload []byte) []byte {
	var buf bytes.Buffer
	buf.WriteString("PUB ")
	buf.WriteString(subject)
	buf.WriteByte(' ')
	if reply != "" {
		buf.WriteString(reply)
		buf.WriteByte(' ')
	}
	buf.WriteString(strconv.Itoa(len(payload)))
	buf.WriteString("\r\n")
	buf.Write(payload)
	buf.WriteString("\r\n")
	return buf.Bytes()
}

// EncodeHPub formats an HPUB frame (headers + payload).
func EncodeHPub(subject, reply string, h *Header, payload []byte) []byte {
	hdrBlock := encodeHeaderBlock(h, StatusNone, "")

	var buf bytes.Buffer
	buf.WriteString("HPUB ")
	buf.WriteString(subject)
	buf.WriteByte(' ')
	if reply != "" {
		buf.WriteString(reply)
		buf.WriteByte(' ')
	}
	buf.WriteString(strconv.Itoa(len(hdrBlock)))
	buf.WriteByte(' ')
	buf.WriteString(strconv.Itoa(len(hdrBlock) + len(payload)))
	buf.WriteString("\r\n")
	buf.Write(hdrBlock)
	buf.Write(payload)
	buf.WriteString("\r\n")
	return buf.Bytes()
}
