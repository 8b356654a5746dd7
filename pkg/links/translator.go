package links

import (
	"strings"

	"github.com/meerkat-code/meerkat-abacus/pkg/common/models"
)

// Translate derives a link's data payload from a matched to-row. Candidates
// are evaluated in spec order; a field with exactly one matching candidate
// stores a scalar, several store the ordered list, none fall back to the
// declared default or leave the field out.
func Translate(spec DataSpec, row models.Row) map[string]interface{} {
	data := make(map[string]interface{}, len(spec))
	for _, field := range spec {
		var matched []interface{}
		var defaultValue string
		hasDefault := false

		for _, candidate := range field.Candidates {
			if !candidate.Condition.IsList && candidate.Condition.Scalar() == "default_value" {
				defaultValue = candidate.Name
				hasDefault = true
				continue
			}

			if candidate.Column.IsList {
				// Any of the listed columns equal to the scalar condition.
				condition := candidate.Condition.Scalar()
				for _, column := range candidate.Column.Values {
					if value, ok := row.GetString(column); ok && value == condition {
						matched = append(matched, candidate.Name)
						break
					}
				}
				continue
			}

			column := candidate.Column.Scalar()
			if candidate.Condition.IsList {
				value, ok := row.GetString(column)
				if !ok {
					continue
				}
				for _, option := range candidate.Condition.Values {
					if value == option {
						matched = append(matched, candidate.Name)
						break
					}
				}
				continue
			}

			if candidate.Condition.Scalar() == "get_value" {
				// Copy the raw cell through instead of the candidate name.
				// Always a match: a missing column contributes a null, it
				// does not fall through to the default.
				matched = append(matched, row[column])
				continue
			}

			if value, ok := row.GetString(column); ok {
				for _, part := range strings.Split(value, ",") {
					if part == candidate.Condition.Scalar() {
						matched = append(matched, candidate.Name)
						break
					}
				}
			}
		}

		switch {
		case len(matched) == 1:
			data[field.Field] = matched[0]
		case len(matched) > 1:
			data[field.Field] = matched
		case hasDefault:
			data[field.Field] = defaultValue
		}
	}
	return data
}
