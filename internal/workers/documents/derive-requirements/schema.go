package deriverequirements

// inputSchema checks the outer shape of the job variables. Field values are
// free-form and fields without a key are dropped one by one during
// normalization.
const inputSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"definitions": {
		"fields": {
			"type": "array",
			"items": {
				"type": "object",
				"properties": {
					"key": {"type": "string"},
					"label": {"type": ["string", "null"]},
					"type": {"type": ["string", "null"]}
				}
			}
		},
		"envelope": {
			"type": "object",
			"properties": {"fields": {"$ref": "#/definitions/fields"}}
		}
	},
	"properties": {
		"fields": {"$ref": "#/definitions/fields"},
		"data": {"$ref": "#/definitions/envelope"},
		"body": {
			"type": "object",
			"properties": {"data": {"$ref": "#/definitions/envelope"}}
		},
		"year": {"type": ["string", "integer", "null"]}
	}
}`

func GetInputSchema() []byte { return []byte(inputSchema) }
