package poll

// Action is what happens when a poll closes.
type Action string

const (
	ActionBan   Action = "ban"
	ActionUnban Action = "unban"
	ActionQuiz  Action = "quiz"
)

// Subject carries what the poll is about. Unused fields stay zero.
type Subject struct {
	UserID        int64  `json:"userId,omitempty"`
	UserName      string `json:"userName,omitempty"`
	CitationRow   int    `json:"citationRow,omitempty"`
	CorrectOption int    `json:"correctOption,omitempty"`
}

type Option struct {
	Text  string `json:"text"`
	Votes int    `json:"votes"`
}

// Snapshot is the latest known tally of a poll.
type Snapshot struct {
	Options     []Option `json:"options"`
	TotalVoters int      `json:"totalVoters"`
	Closed      bool     `json:"closed"`
}

// Votes returns the vote count of option i, or 0 if it does not exist.
func (s Snapshot) Votes(i int) int {
	if i < 0 || i >= len(s.Options) {
		return 0
	}
	return s.Options[i].Votes
}

// YesWins reports whether option 0 strictly outvotes option 1. A tie is a loss.
func (s Snapshot) YesWins() bool {
	return s.Votes(0) > s.Votes(1)
}

// Leader returns the index of the option with strictly the most votes.
func (s Snapshot) Leader() (int, bool) {
	best, bestVotes, tie := -1, -1, false
	for i, o := range s.Options {
		switch {
		case o.Votes > bestVotes:
			best, bestVotes, tie = i, o.Votes, false
		case o.Votes == bestVotes:
			tie = true
		}
	}
	if best < 0 || tie {
		return 0, false
	}
	return best, true
}

// Record correlates an issued poll with the action to run when it closes.
// ChatID, MessageID, Action and Subject are fixed at issue time.
type Record struct {
	PollID    string   `json:"pollId"`
	ChatID    int64    `json:"chatId"`
	MessageID int      `json:"messageId"`
	Action    Action   `json:"action"`
	Subject   Subject  `json:"subject"`
	Snapshot  Snapshot `json:"snapshot"`
}

// Met evaluates the close condition of the record's action.
func (r *Record) Met() bool {
	switch r.Action {
	case ActionQuiz:
		leader, ok := r.Snapshot.Leader()
		return ok && leader == r.Subject.CorrectOption
	default:
		return r.Snapshot.YesWins()
	}
}

// Request describes the poll to send.
type Request struct {
	Question      string
	Options       []string
	Anonymous     bool
	Quiz          bool
	CorrectOption int
	OpenPeriod    int // seconds
}

// Issued is what the transport reports back after sending a poll.
type Issued struct {
	PollID    string
	MessageID int
	Snapshot  Snapshot
}
