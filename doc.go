// Package kilroyfacetwitter is a Twitter face for the kilroy bot
// framework: a long-lived host that exposes a small, uniform surface
// (post, score, scrap, configuration) over HTTP and WebSocket while the
// behavior behind that surface stays swappable at runtime.
//
// # Architecture
//
// The face is built from pluggable components, one family per concern:
//
//   - processor: the content shape; parses incoming payloads into drafts
//     and converts fetched tweets back into payloads
//   - poster: publishes a draft and assembles the public post record
//   - scorer: rates a tweet by one engagement metric
//   - scraper: walks a remote feed page by page
//   - modifier: rescales scores, optional
//   - restriction: vetoes outgoing posts, optional
//
// Components register in category registries at process start
// (face.NewCatalog); nothing registers at runtime. Which component of
// each family is active, and how it is configured, lives in a single
// composite snapshot hosted by a state.Container:
//
//	┌──────────────────────────────┐
//	│           gateway            │  HTTP + WebSocket surface
//	│  /post /score /scrap /config │
//	└──────────────┬───────────────┘
//	               ↓
//	┌──────────────────────────────┐
//	│            face              │  operations, parameters,
//	│   (catalog + parameter set)  │  persistence
//	└──────────────┬───────────────┘
//	               ↓
//	┌──────────────────────────────┐
//	│       state.Container        │  snapshot swap, readiness,
//	│  (readers/writer, watches)   │  config change events
//	└──────────────────────────────┘
//
// Reads acquire the published snapshot and never block each other; a
// configuration update stages a deep copy, mutates it, and swaps it in
// atomically. A failing update rolls back wholesale, and readiness
// drops for the duration of a swap so callers can fail fast and retry.
//
// # Packages
//
// Core:
//   - face: the runtime host composing everything below
//   - state: generic snapshot container and in-process event streams
//   - param: the configuration parameter abstractions, including
//     category switching with per-category parameter memory
//   - component: registries, schemas, and shared component contracts
//
// Domain:
//   - twitter: v2 REST client, field requirements, post id codec
//   - processor, poster, scorer, scraper, modifier, restriction: the
//     component families
//   - toxicity: external toxicity estimator and its shared pool
//   - post: the content payload exchanged with the outside world
//
// Infrastructure:
//   - gateway: HTTP/WebSocket protocol surface
//   - statestore: on-disk state persistence
//   - config: YAML application configuration
//   - metric: Prometheus metrics
//   - errors: classified error handling
//   - pkg/retry: backoff policies for transient failures
//
// # Binary
//
// cmd/kilroy-face-twitter runs the face as a service:
//
//	kilroy-face-twitter --config config.yaml
//
// Credentials may be supplied through KILROY_FACE_TWITTER_* environment
// variables instead of the file.
package kilroyfacetwitter
