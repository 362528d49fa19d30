package prompt

import (
	"regexp"
)

// PIIType represents different types of PII that can be detected
type PIIType string

const (
	PIITypeNationalID PIIType = "national_id"
	PIITypePhone      PIIType = "phone"
	PIITypeEmail      PIIType = "email"
	PIITypeName       PIIType = "name"
)

// PIIDetection represents a detected PII instance
type PIIDetection struct {
	Type     PIIType
	Value    string
	StartPos int
	EndPos   int
}

var (
	// National id formats: CPF (XXX.XXX.XXX-XX or 11 digits), CNS (15 digits)
	nationalIDPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\b[0-9]{3}\.[0-9]{3}\.[0-9]{3}-[0-9]{2}\b`),
		regexp.MustCompile(`\b[0-9]{11}\b`),
		regexp.MustCompile(`\b[0-9]{15}\b`),
	}

	// Phone patterns: +55 style and bare local formats
	phonePatterns = []*regexp.Regexp{
		regexp.MustCompile(`\b\+?55\s?\(?[0-9]{2}\)?\s?9?[0-9]{4}[-.\s]?[0-9]{4}\b`),
		regexp.MustCompile(`\(?[0-9]{2,3}\)?[-.\s][0-9]{4,5}[-.\s]?[0-9]{4}\b`),
	}

	// Email pattern, RFC 5322 simplified
	emailPattern = regexp.MustCompile(`\b[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Z|a-z]{2,}\b`)

	// Two or more consecutive capitalized words, the shape of a person's name
	namePattern = regexp.MustCompile(`\b[A-Z][a-zà-ü]+(?:\s+(?:d[aeo]s?\s+)?[A-Z][a-zà-ü]+)+\b`)
)

// DetectPII returns true if the text likely contains PII.
func DetectPII(text string) bool {
	return len(DetectAllPII(text)) > 0
}

// DetectAllPII returns all PII detections in the text
func DetectAllPII(text string) []PIIDetection {
	var detections []PIIDetection

	collect := func(piiType PIIType, pattern *regexp.Regexp) {
		for _, match := range pattern.FindAllStringIndex(text, -1) {
			detections = append(detections, PIIDetection{
				Type:     piiType,
				Value:    text[match[0]:match[1]],
				StartPos: match[0],
				EndPos:   match[1],
			})
		}
	}

	for _, p := range nationalIDPatterns {
		collect(PIITypeNationalID, p)
	}
	for _, p := range phonePatterns {
		collect(PIITypePhone, p)
	}
	collect(PIITypeEmail, emailPattern)
	collect(PIITypeName, namePattern)

	return detections
}

// RedactPII redacts all detected PII in the text
func RedactPII(text string) string {
	detections := DetectAllPII(text)

	// Sort detections by position (descending) to avoid index shifts
	for i := 0; i < len(detections); i++ {
		for j := i + 1; j < len(detections); j++ {
			if detections[i].StartPos < detections[j].StartPos {
				detections[i], detections[j] = detections[j], detections[i]
			}
		}
	}

	result := text
	lastStart := len(result) + 1
	for _, detection := range detections {
		// Overlapping matches were already consumed by a later replacement
		if detection.EndPos > lastStart {
			continue
		}
		redacted := redactionString(detection.Type)
		result = result[:detection.StartPos] + redacted + result[detection.EndPos:]
		lastStart = detection.StartPos
	}

	return result
}

// redactionString returns the placeholder for the PII type
func redactionString(piiType PIIType) string {
	switch piiType {
	case PIITypeNationalID:
		return "[ID_REDACTED]"
	case PIITypePhone:
		return "[PHONE_REDACTED]"
	case PIITypeEmail:
		return "[EMAIL_REDACTED]"
	case PIITypeName:
		return "[NAME_REDACTED]"
	default:
		return "[REDACTED]"
	}
}
