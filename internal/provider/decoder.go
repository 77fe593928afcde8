package provider

import (
	"bytes"
	"encoding/json"
	"strings"
)

const (
	dataPrefix = "data: "
	doneLine   = "data: [DONE]"
)

type chunkPayload struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// Decoder turns an OpenAI-style event stream into content fragments.
//
// The only state is the carry: bytes after the last newline seen so far.
// Lines are cut on raw bytes, so a UTF-8 sequence or JSON token split across
// two Feed calls is rejoined before it is decoded. For any split of the same
// input the concatenated output of Feed and Flush is identical.
type Decoder struct {
	carry []byte
	done  bool

	// OnSkip, if set, is called for each data line whose payload is not JSON.
	OnSkip func(line string, err error)
}

// Feed consumes p and returns the fragments completed by it. done is true
// once the completion marker has been seen; everything after it is ignored.
func (d *Decoder) Feed(p []byte) (fragments []string, done bool) {
	if d.done {
		return nil, true
	}
	d.carry = append(d.carry, p...)

	for {
		i := bytes.IndexByte(d.carry, '\n')
		if i < 0 {
			break
		}
		line := string(d.carry[:i])
		d.carry = d.carry[i+1:]

		frag, stop := d.line(line)
		if stop {
			d.done = true
			d.carry = nil
			return fragments, true
		}
		if frag != "" {
			fragments = append(fragments, frag)
		}
	}

	// Reclaim the consumed prefix so a long stream does not pin its history.
	if len(d.carry) == 0 {
		d.carry = nil
	} else if cap(d.carry) > 4*len(d.carry) && cap(d.carry) > 4096 {
		d.carry = append([]byte(nil), d.carry...)
	}
	return fragments, false
}

// Flush decodes an unterminated last line once upstream has closed.
func (d *Decoder) Flush() []string {
	if d.done || len(d.carry) == 0 {
		return nil
	}
	line := string(d.carry)
	d.carry = nil
	d.done = true

	frag, _ := d.line(line)
	if frag == "" {
		return nil
	}
	return []string{frag}
}

// Done reports whether the completion marker has been seen.
func (d *Decoder) Done() bool {
	return d.done
}

func (d *Decoder) line(raw string) (fragment string, stop bool) {
	line := strings.TrimSpace(raw)
	if line == "" {
		return "", false
	}
	if line == doneLine {
		return "", true
	}
	if !strings.HasPrefix(line, dataPrefix) {
		return "", false
	}

	var payload chunkPayload
	if err := json.Unmarshal([]byte(line[len(dataPrefix):]), &payload); err != nil {
		if d.OnSkip != nil {
			d.OnSkip(line, err)
		}
		return "", false
	}
	if len(payload.Choices) == 0 {
		return "", false
	}
	return payload.Choices[0].Delta.Content, false
}
