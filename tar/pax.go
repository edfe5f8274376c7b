package tar

import (
	"strconv"
)

// parsePAXRecords decodes a PAX extended-header payload: a sequence of
// "LEN KEY=VALUE\n" records, LEN being the decimal length of the whole
// record including its own digits, the separating space, and the
// trailing newline (spec.md §4.4). A malformed record aborts the
// remaining scan; bytes already consumed are simply dropped, they
// never applied to anything.
func parsePAXRecords(data []byte) map[string]string {
	out := make(map[string]string)
	for len(data) > 0 {
		sp := indexByte(data, ' ')
		if sp <= 0 {
			return out
		}
		n, err := strconv.Atoi(string(data[:sp]))
		if err != nil || n <= sp || n > len(data) {
			return out
		}
		record := data[sp+1 : n]
		data = data[n:]
		if len(record) == 0 || record[len(record)-1] != '\n' {
			return out
		}
		record = record[:len(record)-1]
		eq := indexByte(record, '=')
		if eq < 0 {
			return out
		}
		key := string(record[:eq])
		val := string(record[eq+1:])
		out[key] = val
	}
	return out
}

func indexByte(b []byte, c byte) int {
	for i, x := range b {
		if x == c {
			return i
		}
	}
	return -1
}

// applyPAXRecords folds a decoded PAX local-header record set onto h
// (spec.md §3/§4.4 precedence: PAX overrides the base USTAR field,
// GNU long-name/long-link still outrank PAX).
func applyPAXRecords(h *rawHeader, records map[string]string) {
	for k, v := range records {
		switch k {
		case "path":
			h.paxName, h.hasPaxName = v, true
		case "linkpath":
			h.paxLinkName, h.hasPaxLink = v, true
		case "size":
			if n, err := strconv.ParseInt(v, 10, 64); err == nil {
				h.paxSize, h.hasPaxSize = n, true
			}
		case "uid":
			if n, err := strconv.ParseInt(v, 10, 64); err == nil {
				h.paxUid, h.hasPaxUid = n, true
			}
		case "gid":
			if n, err := strconv.ParseInt(v, 10, 64); err == nil {
				h.paxGid, h.hasPaxGid = n, true
			}
		case "mode":
			if n, err := strconv.ParseInt(v, 8, 64); err == nil {
				h.paxMode, h.hasPaxMode = n, true
			}
		case "mtime":
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				h.paxMtime, h.hasPaxMtime = int64(f), true
			}
		case "uname":
			h.paxUname, h.hasPaxUname = v, true
		case "gname":
			h.paxGname, h.hasPaxGname = v, true
		default:
			// Unrecognised keys are ignored (spec.md §4.4).
		}
	}
}

// applyPAXGlobalRecords folds a PAX global-header record set into the
// persistent defaults carried forward to every later header.
func applyPAXGlobalRecords(g *globalExtended, records map[string]string) {
	for k, v := range records {
		switch k {
		case "path":
			g.name, g.hasName = v, true
		case "linkpath":
			g.linkName, g.hasLink = v, true
		case "size":
			if n, err := strconv.ParseInt(v, 10, 64); err == nil {
				g.size, g.hasSize = n, true
			}
		case "uid":
			if n, err := strconv.ParseInt(v, 10, 64); err == nil {
				g.uid, g.hasUid = n, true
			}
		case "gid":
			if n, err := strconv.ParseInt(v, 10, 64); err == nil {
				g.gid, g.hasGid = n, true
			}
		case "mode":
			if n, err := strconv.ParseInt(v, 8, 64); err == nil {
				g.mode, g.hasMode = n, true
			}
		case "mtime":
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				g.mtime, g.hasMtime = int64(f), true
			}
		case "uname":
			g.uname, g.hasUname = v, true
		case "gname":
			g.gname, g.hasGname = v, true
		}
	}
}

// buildPAXRecord renders a single "LEN KEY=VALUE\n" record, solving the
// fixed point where LEN's own digit count affects LEN.
func buildPAXRecord(key, value string) []byte {
	// "%d %s=%s\n" — suffix is everything after LEN and its space.
	suffix := key + "=" + value + "\n"
	n := len(suffix) + 1 // +1 as a first guess for len(strconv.Itoa(n)) plus space, solved below
	for {
		total := len(strconv.Itoa(n)) + 1 + len(suffix)
		if total == n {
			break
		}
		n = total
	}
	return []byte(strconv.Itoa(n) + " " + suffix)
}

// buildPAXBlock concatenates PAX records for a local extended header.
func buildPAXBlock(records map[string]string) []byte {
	var out []byte
	// Deterministic order keeps encoder output stable for tests.
	for _, k := range []string{"path", "linkpath", "size", "uid", "gid", "mode", "mtime", "uname", "gname"} {
		if v, ok := records[k]; ok {
			out = append(out, buildPAXRecord(k, v)...)
		}
	}
	return out
}
