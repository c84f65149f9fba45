// Package dialogflow translates Dialogflow ES fulfillment webhooks to and
// from render requests.
//
// The conversation history travels inside an output context named
// "historyInstance", so the webhook itself stays stateless.
package dialogflow
