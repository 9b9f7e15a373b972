package corpus

// recordsSchema validates the persisted corpus: a JSON array of layout
// records. Every pattern_info element must carry exactly type/props/value.
const recordsSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "array",
  "items": {
    "type": "object",
    "required": ["id", "query", "object_type", "layout_type", "patterns_used", "layout", "metadata"],
    "additionalProperties": false,
    "properties": {
      "id": {"type": "string", "minLength": 1},
      "query": {"type": "string"},
      "object_type": {"type": "string"},
      "layout_type": {"type": "string"},
      "patterns_used": {"type": "array", "items": {"type": "string"}},
      "layout": {
        "type": "object",
        "required": ["rows"],
        "additionalProperties": false,
        "properties": {
          "rows": {
            "type": "array",
            "items": {
              "type": "object",
              "required": ["pattern_type", "pattern_info"],
              "additionalProperties": false,
              "properties": {
                "pattern_type": {"type": "string"},
                "pattern_info": {
                  "type": "array",
                  "items": {
                    "type": "object",
                    "required": ["type", "props", "value"],
                    "additionalProperties": false,
                    "properties": {
                      "type": {"type": "string", "minLength": 1},
                      "props": {"type": "object"},
                      "value": {"type": "object"}
                    }
                  }
                }
              }
            }
          }
        }
      },
      "metadata": {
        "type": "object",
        "required": ["num_rows", "num_components"],
        "properties": {
          "num_rows": {"type": "integer", "minimum": 0},
          "num_components": {"type": "integer", "minimum": 0}
        }
      }
    }
  }
}`
