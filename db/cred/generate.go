package cred

import "fmt"

// GenPassPrefix marks generated passwords so operators can spot them in
// rotation policies.
const GenPassPrefix = "COPSE-GENPASS"

// GeneratePassword produces a random, easy-to-type password for
// operator-issued initial credentials: the fixed prefix, a Bubble Babble
// encoding of six random bytes, and five trailing digits.
func GeneratePassword() (string, error) {
	b, err := randomBytes(8)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%s-%02d%03d",
		GenPassPrefix,
		encodeBubbleBabble(b[0:6]),
		b[6]%100,
		int(b[7]),
	), nil
}

// encodeBubbleBabble renders bytes in the Bubble Babble encoding: an
// alternating vowel/consonant form with a running checksum, delimited by
// 'x'. Pronounceable, and the checksum catches most transcription slips.
func encodeBubbleBabble(data []byte) string {
	vowels := "aeiouy"
	consonants := "bcdfghklmnprstvzx"

	out := make([]byte, 0, len(data)*3+5)
	out = append(out, 'x')
	c := 1

	for i := 0; i <= len(data); i += 2 {
		if i >= len(data) {
			out = append(out, vowels[c%6], consonants[16], vowels[c/6])
			break
		}

		b1 := int(data[i])
		out = append(out,
			vowels[(((b1>>6)&3)+c)%6],
			consonants[(b1>>2)&15],
			vowels[((b1&3)+(c/6))%6],
		)
		if i+1 >= len(data) {
			break
		}

		b2 := int(data[i+1])
		out = append(out, consonants[(b2>>4)&15], '-', consonants[b2&15])
		c = (c*5 + b1*7 + b2) % 36
	}

	out = append(out, 'x')
	return string(out)
}
