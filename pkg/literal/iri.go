package literal

import (
	"net/url"
	"strings"
)

var defaultPorts = map[string]string{
	"http":  "80",
	"https": "443",
	"ftp":   "21",
}

// IRI interns an absolute IRI after syntax-based normalization (RFC 3986 §6.2.2):
// lower-case scheme and host, default port removal, dot-segment removal, and
// percent-encoding normalization.
//
// Returns a *FormatError if ref cannot be parsed or is not absolute. Use
// Resolve for references relative to a base locator.
//
// Example:
//
//	a, _ := literal.IRI("http://EXAMPLE.org:80/x/./y")
//	b, _ := literal.IRI("http://example.org/x/y")
//	fmt.Println(a == b) // true
func IRI(ref string) (Literal, error) {
	u, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return Literal{}, &FormatError{Value: ref, Datatype: XSDAnyURI, Reason: err.Error()}
	}
	if !u.IsAbs() {
		return Literal{}, &FormatError{Value: ref, Datatype: XSDAnyURI, Reason: "not an absolute IRI"}
	}
	return intern(normalizeURL(u), XSDAnyURI), nil
}

// MustIRI is like IRI but panics on error.
func MustIRI(ref string) Literal {
	lit, err := IRI(ref)
	if err != nil {
		panic(err)
	}
	return lit
}

// Resolve resolves ref against base and interns the result.
// An absolute ref is interned as-is (after normalization); a fragment-only ref
// such as "#a" is attached to base.
func Resolve(base Literal, ref string) (Literal, error) {
	r, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return Literal{}, &FormatError{Value: ref, Datatype: XSDAnyURI, Reason: err.Error()}
	}
	if r.IsAbs() {
		return intern(normalizeURL(r), XSDAnyURI), nil
	}
	if !base.IsIRI() {
		return Literal{}, &FormatError{Value: ref, Datatype: XSDAnyURI, Reason: "relative reference without a base IRI"}
	}
	b, err := url.Parse(base.Value())
	if err != nil {
		return Literal{}, &FormatError{Value: base.Value(), Datatype: XSDAnyURI, Reason: err.Error()}
	}
	return intern(normalizeURL(b.ResolveReference(r)), XSDAnyURI), nil
}

func normalizeURL(u *url.URL) string {
	scheme := strings.ToLower(u.Scheme)
	var sb strings.Builder
	sb.WriteString(scheme)
	sb.WriteByte(':')

	if u.Opaque != "" {
		sb.WriteString(normalizePercent(u.Opaque))
	} else {
		if u.Host != "" || u.User != nil || scheme == "file" {
			sb.WriteString("//")
			if u.User != nil {
				sb.WriteString(u.User.String())
				sb.WriteByte('@')
			}
			host := strings.ToLower(u.Hostname())
			if strings.Contains(host, ":") {
				host = "[" + host + "]"
			}
			sb.WriteString(host)
			if port := u.Port(); port != "" && defaultPorts[scheme] != port {
				sb.WriteByte(':')
				sb.WriteString(port)
			}
		}
		path := removeDotSegments(u.EscapedPath())
		if path == "" && u.Host != "" {
			path = "/"
		}
		sb.WriteString(normalizePercent(path))
	}

	if u.ForceQuery || u.RawQuery != "" {
		sb.WriteByte('?')
		sb.WriteString(normalizePercent(u.RawQuery))
	}
	if u.Fragment != "" {
		sb.WriteByte('#')
		sb.WriteString(normalizePercent(u.EscapedFragment()))
	}
	return sb.String()
}

// removeDotSegments implements RFC 3986 §5.2.4.
func removeDotSegments(path string) string {
	if !strings.Contains(path, ".") {
		return path
	}
	in := path
	var out []string
	for in != "" {
		switch {
		case strings.HasPrefix(in, "../"):
			in = in[3:]
		case strings.HasPrefix(in, "./"):
			in = in[2:]
		case strings.HasPrefix(in, "/./"):
			in = in[2:]
		case in == "/.":
			in = "/"
		case strings.HasPrefix(in, "/../"):
			in = in[3:]
			if len(out) > 0 {
				out = out[:len(out)-1]
			}
		case in == "/..":
			in = "/"
			if len(out) > 0 {
				out = out[:len(out)-1]
			}
		case in == "." || in == "..":
			in = ""
		default:
			i := strings.IndexByte(in[1:], '/')
			if i < 0 {
				out = append(out, in)
				in = ""
			} else {
				out = append(out, in[:i+1])
				in = in[i+1:]
			}
		}
	}
	return strings.Join(out, "")
}

func isUnreserved(c byte) bool {
	return 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z' || '0' <= c && c <= '9' ||
		c == '-' || c == '.' || c == '_' || c == '~'
}

func unhex(c byte) (byte, bool) {
	switch {
	case '0' <= c && c <= '9':
		return c - '0', true
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10, true
	case 'A' <= c && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

// normalizePercent upper-cases percent-encoding hex digits and decodes
// percent-encoded unreserved characters.
func normalizePercent(s string) string {
	if !strings.Contains(s, "%") {
		return s
	}
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '%' && i+2 < len(s) {
			hi, ok1 := unhex(s[i+1])
			lo, ok2 := unhex(s[i+2])
			if ok1 && ok2 {
				c := hi<<4 | lo
				if isUnreserved(c) {
					sb.WriteByte(c)
				} else {
					sb.WriteByte('%')
					sb.WriteString(strings.ToUpper(s[i+1 : i+3]))
				}
				i += 2
				continue
			}
		}
		sb.WriteByte(s[i])
	}
	return sb.String()
}
