package cloudsign

import "regexp"

type CommandKind int

const (
	KindUnknown CommandKind = iota
	KindCheckIn
	KindPoints
	KindActivity
	KindSell
	KindHelp
	KindClaimSubsidy
	KindCheckInStatus
	KindLeaderboard
	KindRob
	KindLottery
	KindTransfer
	KindUpdateCheck
	KindGeneric
	KindRockPaperScissors
	KindGuessNumber
)

var kindNames = map[CommandKind]string{
	KindUnknown:           "unknown",
	KindCheckIn:           "check_in",
	KindPoints:            "points",
	KindActivity:          "activity",
	KindSell:              "sell",
	KindHelp:              "help",
	KindClaimSubsidy:      "claim_subsidy",
	KindCheckInStatus:     "check_in_status",
	KindLeaderboard:       "leaderboard",
	KindRob:               "rob",
	KindLottery:           "lottery",
	KindTransfer:          "transfer",
	KindUpdateCheck:       "update_check",
	KindGeneric:           "generic",
	KindRockPaperScissors: "rock_paper_scissors",
	KindGuessNumber:       "guess_number",
}

func (k CommandKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Command is a recognized message shape. Args holds the captured groups of the
// shape in order; optional groups that did not participate are empty strings.
type Command struct {
	Kind CommandKind
	Args []string
}

type commandShape struct {
	kind    CommandKind
	pattern *regexp.Regexp
}

// anyLine matches what a JavaScript "." matches: every rune except line terminators.
const anyLine = `[^\n\r\x{2028}\x{2029}]`

var commandShapes = []commandShape{
	{KindCheckIn, regexp.MustCompile(`^签到$`)},
	{KindPoints, regexp.MustCompile(`^积分$`)},
	{KindActivity, regexp.MustCompile(`^(挖矿|我的背包|钓鱼|我的鱼篓)$`)},
	{KindSell, regexp.MustCompile(`^(出售|售出) ([\x{4e00}-\x{9fa5}]+)$`)},
	{KindHelp, regexp.MustCompile(`^功能(?: (` + anyLine + `*?))?$`)},
	{KindClaimSubsidy, regexp.MustCompile(`^领取积分补助$`)},
	{KindCheckInStatus, regexp.MustCompile(`^签到状态$`)},
	{KindLeaderboard, regexp.MustCompile(`^排行榜$`)},
	{KindRob, regexp.MustCompile(`^打劫(` + anyLine + `*?)$`)},
	{KindLottery, regexp.MustCompile(`^抽奖 ([0-9]+)$`)},
	{KindTransfer, regexp.MustCompile(`^转账 ([0-9]+)(` + anyLine + `*?)$`)},
	{KindUpdateCheck, regexp.MustCompile(`^@检查更新@$`)},
	{KindGeneric, regexp.MustCompile(`^#(` + anyLine + `*?)$`)},
	{KindRockPaperScissors, regexp.MustCompile(`^猜拳(石头|剪刀|布) ([0-9]+)$`)},
	{KindGuessNumber, regexp.MustCompile(`^(猜数字|我猜) ([0-9]+)$`)},
}

// MatchCommand reports which command shape text has. The first matching shape
// in declaration order wins.
func MatchCommand(text string) (Command, bool) {
	for _, shape := range commandShapes {
		m := shape.pattern.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		return Command{Kind: shape.kind, Args: m[1:]}, true
	}
	return Command{Kind: KindUnknown}, false
}
