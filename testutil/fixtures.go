package testutil

// HistoryFixture is a get-chat-history body ending on an answered turn.
const HistoryFixture = `[
  {"message": {"role": "user", "content": "Hello", "message_id": "m1"}, "time_sent": "2025-05-01T12:00:00Z"},
  {"message": {"role": "assistant", "content": "**A:**\nHi there", "message_id": "m2"}, "time_sent": "2025-05-01T12:00:05Z"}
]`

// HistoryStringFixture stores each message as a JSON string, the way the
// persistence API returns turns saved through a text column.
const HistoryStringFixture = `[
  {"message": "{\"role\": \"user\", \"content\": \"Hello\"}", "time_sent": "2025-05-01 12:00:00"},
  {"message": "{'role': 'assistant', 'content': 'Hi there'}", "time_sent": "2025-05-01 12:00:05"}
]`

// EmptyHistoryFixture is the persistence API's answer for a chat without turns.
const EmptyHistoryFixture = `{"error": "Chat doesn't exist or has no messages"}`

// ModelFileFixture is a model set file with two models where B reads A's output.
const ModelFileFixture = `version: "1"
next_id: 5
models:
  - id: 0
    name: A
    value: deepseek-ai/DeepSeek-R1
    system_prompt: You are a helpful AI assistant.
    temperature: 0.7
    top_p: 1
    min_p: 0
    max_tokens: 16384
    history_source:
      history: all
  - id: 3
    name: B
    value: Qwen/Qwen3-235B-A22B
    temperature: 0.2
    top_p: 0.9
    min_p: 0.05
    max_tokens: 2048
    history_source:
      history: 4
      prompt: true
      models: [0]
`

// ConfigFixture is a config file overriding the backend URLs.
const ConfigFixture = `api:
  base_url: http://api.test:8000/api
inference:
  base_url: http://inference.test:5000
http:
  timeout: 5s
chat:
  settle_delay: 10ms
`
