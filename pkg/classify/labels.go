package classify

import "encoding/json"

// Age is an age-bucket label such as "25-32".
type Age string

// AgeUnknown is the age of a face whose classification failed.
const AgeUnknown Age = ""

// AgeLabels is the output order of the age network.
var AgeLabels = []Age{"0-2", "4-6", "8-13", "15-20", "25-32", "38-43", "48-53", "60-"}

// String renders the label; unknown ages render as "null".
func (a Age) String() string {
	if a == AgeUnknown {
		return "null"
	}
	return string(a)
}

// MarshalJSON writes AgeUnknown as null and any other label as a string.
func (a Age) MarshalJSON() ([]byte, error) {
	if a == AgeUnknown {
		return []byte("null"), nil
	}
	return json.Marshal(string(a))
}

// UnmarshalJSON reads a label written by MarshalJSON; null decodes as
// AgeUnknown.
func (a *Age) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*a = AgeUnknown
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*a = Age(s)
	return nil
}

// Gender is the output of the gender network.
type Gender int

const (
	// NotRecognized is the gender of a face whose classification failed.
	NotRecognized Gender = iota
	Male
	Female
)

func (g Gender) String() string {
	switch g {
	case Male:
		return "MALE"
	case Female:
		return "FEMALE"
	default:
		return "NOT_RECOGNIZED"
	}
}

// MarshalText lets Gender appear as its name in JSON.
func (g Gender) MarshalText() ([]byte, error) {
	return []byte(g.String()), nil
}

// UnmarshalText parses a name written by MarshalText. Unknown names decode
// as NotRecognized.
func (g *Gender) UnmarshalText(text []byte) error {
	switch string(text) {
	case "MALE":
		*g = Male
	case "FEMALE":
		*g = Female
	default:
		*g = NotRecognized
	}
	return nil
}
