package smsc

import (
	"fmt"
	"net/url"
	"strconv"
	"unicode/utf8"
)

// MaxTextLength is the gateway's limit on message text, in characters.
const MaxTextLength = 800

// Format selects the delivery channel flag added to the outbound request.
type Format string

const (
	// FormatSMS is the default channel; it adds no format key.
	FormatSMS Format = ""
	// FormatFlash delivers the text as a flash SMS (flash=1).
	FormatFlash Format = "flash"
	// FormatViber delivers the text through Viber (viber=1).
	FormatViber Format = "viber"
)

// Message is an outbound message payload. It is immutable after
// construction; build one with NewSMSMessage, NewFlashMessage or
// NewViberMessage and pass it to Client.Send or Client.GetCost.
type Message struct {
	text     string
	format   Format
	translit *int
	tinyurl  *int
	maxsms   *int
}

// MessageOption sets an optional gateway parameter on a message.
type MessageOption func(*Message)

// WithTranslit sets the translit flag (transliterate text to latin).
func WithTranslit(v int) MessageOption {
	return func(m *Message) { m.translit = &v }
}

// WithTinyURL sets the tinyurl flag (shorten links in the text).
func WithTinyURL(v int) MessageOption {
	return func(m *Message) { m.tinyurl = &v }
}

// WithMaxSMS caps the number of SMS parts the text may be split into.
func WithMaxSMS(n int) MessageOption {
	return func(m *Message) { m.maxsms = &n }
}

func newMessage(text string, format Format, opts []MessageOption) (*Message, error) {
	if utf8.RuneCountInString(text) > MaxTextLength {
		return nil, fmt.Errorf("%w: got %d", ErrMessageTooLong, utf8.RuneCountInString(text))
	}
	m := &Message{text: text, format: format}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// NewSMSMessage builds a plain SMS message.
func NewSMSMessage(text string, opts ...MessageOption) (*Message, error) {
	return newMessage(text, FormatSMS, opts)
}

// NewFlashMessage builds a flash SMS message.
func NewFlashMessage(text string, opts ...MessageOption) (*Message, error) {
	return newMessage(text, FormatFlash, opts)
}

// NewViberMessage builds a Viber message.
func NewViberMessage(text string, opts ...MessageOption) (*Message, error) {
	return newMessage(text, FormatViber, opts)
}

// Text returns the message text.
func (m *Message) Text() string { return m.text }

// Format returns the channel discriminator; FormatSMS for plain SMS.
func (m *Message) Format() Format { return m.format }

// Encode returns the message's query parameters for the gateway.
// Optional parameters that were not supplied are omitted entirely.
// Encode is pure: repeated calls yield identical values.
func (m *Message) Encode() url.Values {
	v := url.Values{}
	v.Set("mes", m.text)
	if m.format != FormatSMS {
		v.Set(string(m.format), "1")
	}
	if m.translit != nil {
		v.Set("translit", strconv.Itoa(*m.translit))
	}
	if m.tinyurl != nil {
		v.Set("tinyurl", strconv.Itoa(*m.tinyurl))
	}
	if m.maxsms != nil {
		v.Set("maxsms", strconv.Itoa(*m.maxsms))
	}
	return v
}

func (m *Message) String() string {
	return fmt.Sprintf("<Message text=%q format=%q>", m.text, m.format)
}
