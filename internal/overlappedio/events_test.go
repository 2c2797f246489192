package overlappedio

import "testing"

func TestParsePollHandleInfoEventsRevents(t *testing.T) {
	tests := []struct {
		name string
		afd  uint32
		want PollEvents
	}{
		{"abort", afdPollAbort, In | Hup},
		{"receive", afdPollReceive, In},
		{"accept", afdPollAccept, In},
		{"disconnect", afdPollDisconnect, In | RdHup},
		{"connect_fail", afdPollConnectFail, In | Out | Err},
		{"send", afdPollSend, Out},
		{"receive_expedited", afdPollReceiveExpedited, Pri},
		{"nothing", 0, 0},
		{"receive_and_send", afdPollReceive | afdPollSend, In | Out},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parsePollHandleInfoEvents(tt.afd); got != tt.want {
				t.Fatalf("parsePollHandleInfoEvents(%#x) = %#x, want %#x", tt.afd, got, tt.want)
			}
		})
	}
}

func TestMakePollHandleInfoEventsAlwaysIncludesAbortAndConnectFail(t *testing.T) {
	got := makePollHandleInfoEvents(0)
	if got&afdPollAbort == 0 || got&afdPollConnectFail == 0 {
		t.Fatalf("makePollHandleInfoEvents(0) = %#x, missing always-on abort/connect-fail bits", got)
	}
}

func TestMakePollHandleInfoEventsRoundTripsInterest(t *testing.T) {
	tests := []struct {
		name    string
		request PollEvents
		bit     uint32
	}{
		{"in", In, afdPollReceive},
		{"out", Out, afdPollSend},
		{"pri", Pri, afdPollReceiveExpedited},
		{"rdhup", RdHup, afdPollDisconnect},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := makePollHandleInfoEvents(tt.request)
			if got&tt.bit == 0 {
				t.Fatalf("makePollHandleInfoEvents(%v) = %#x, missing expected bit %#x", tt.request, got, tt.bit)
			}
		})
	}
}
