package content

import (
	"encoding/base64"
	"errors"
	"net/url"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

var (
	errMalformedDataURL = errors.New("malformed data URL")
	errPayloadTooLarge  = errors.New("file is too large")
	errTypeMismatch     = errors.New("file type does not match the content type")
	errExecutable       = errors.New("executable files are not allowed")
)

// payload is a decoded data URL.
type payload struct {
	declared string // media type written in the URL
	detected string // media type sniffed from the bytes
	size     int64
}

// parseDataURL decodes `data:[<mediatype>][;base64],<data>` and sniffs its content.
func parseDataURL(raw string, maxBytes int64) (payload, error) {
	rest, ok := strings.CutPrefix(raw, "data:")
	if !ok {
		return payload{}, errMalformedDataURL
	}
	meta, data, ok := strings.Cut(rest, ",")
	if !ok {
		return payload{}, errMalformedDataURL
	}

	params := strings.Split(meta, ";")
	declared := strings.ToLower(strings.TrimSpace(params[0]))
	isBase64 := false
	for _, p := range params[1:] {
		if strings.TrimSpace(p) == "base64" {
			isBase64 = true
		}
	}
	if declared == "" {
		declared = "text/plain"
	}

	// reject before decoding when even the encoded form exceeds the limit
	if maxBytes > 0 && int64(base64.StdEncoding.DecodedLen(len(data))) > maxBytes+3 {
		return payload{}, errPayloadTooLarge
	}

	var (
		decoded []byte
		err     error
	)
	if isBase64 {
		decoded, err = base64.StdEncoding.DecodeString(data)
		if err != nil {
			decoded, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(data, "="))
		}
	} else {
		var s string
		s, err = url.PathUnescape(data)
		decoded = []byte(s)
	}
	if err != nil {
		return payload{}, errMalformedDataURL
	}
	if len(decoded) == 0 {
		return payload{}, errMalformedDataURL
	}
	if maxBytes > 0 && int64(len(decoded)) > maxBytes {
		return payload{}, errPayloadTooLarge
	}

	return payload{
		declared: declared,
		detected: mimetype.Detect(decoded).String(),
		size:     int64(len(decoded)),
	}, nil
}

var executables = []string{
	"application/x-executable",
	"application/x-elf",
	"application/x-mach-binary",
	"application/vnd.microsoft.portable-executable",
	"application/x-msdownload",
	"application/x-sharedlib",
	"text/x-shellscript",
}

// containers holding audio that sniff as video (browser voice recordings).
var audioContainers = []string{"video/webm", "video/ogg", "video/mp4", "audio/webm"}

func mediaFamily(mime string) string {
	family, _, _ := strings.Cut(mime, "/")
	return family
}

// check verifies the sniffed media type fits the content type family.
func (p payload) check(typ Type) error {
	detected, _, _ := strings.Cut(p.detected, ";")
	for _, exe := range executables {
		if detected == exe || p.declared == exe {
			return errExecutable
		}
	}

	switch typ {
	case TypeVideo:
		if mediaFamily(detected) != "video" {
			return errTypeMismatch
		}
	case TypeAudio:
		if mediaFamily(detected) == "audio" {
			return nil
		}
		if mediaFamily(p.declared) == "audio" {
			for _, c := range audioContainers {
				if detected == c {
					return nil
				}
			}
		}
		return errTypeMismatch
	}
	return nil
}

// CheckAudio validates a recorded answer or comment sent as a data URL.
func CheckAudio(raw string, maxBytes int64) error {
	p, err := parseDataURL(raw, maxBytes)
	if err != nil {
		return err
	}
	return p.check(TypeAudio)
}
