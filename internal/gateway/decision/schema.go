package decision

import "github.com/santhosh-tekuri/jsonschema/v5"

// 选币服务响应信封的结构约束。结构不合法归类为 schema 错误，
// 与 json 本身不可解析（invalid_json）区分开。
const pickerSchemaJSON = `{
  "type": "object",
  "required": ["ok", "code", "data"],
  "properties": {
    "ok": {"type": "boolean"},
    "code": {"type": "string"},
    "latency_ms": {"type": "number"},
    "meta": {"type": "object"},
    "data": {
      "type": "object",
      "required": ["picks"],
      "properties": {
        "picks": {
          "type": "array",
          "items": {
            "type": "object",
            "required": ["symbol", "side", "entry", "sl", "tp1", "tp2", "expiry_minutes", "risk_pct"],
            "properties": {
              "symbol": {"type": "string", "minLength": 1},
              "label": {"type": "string"},
              "setup_type": {"type": "string"},
              "side": {"enum": ["LONG", "SHORT"]},
              "entry": {"type": "number", "exclusiveMinimum": 0},
              "sl": {"type": "number", "exclusiveMinimum": 0},
              "tp1": {"type": "number", "exclusiveMinimum": 0},
              "tp2": {"type": "number", "exclusiveMinimum": 0},
              "expiry_minutes": {"type": "integer", "minimum": 1},
              "risk_pct": {"type": "number", "minimum": 0},
              "leverage_hint": {"type": "integer", "minimum": 0},
              "confidence": {"type": "number"},
              "reasons": {"type": "array", "items": {"type": "string"}}
            }
          }
        }
      }
    }
  }
}`

var pickerSchema = jsonschema.MustCompileString("picker_response.json", pickerSchemaJSON)
