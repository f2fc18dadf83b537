package cloudsign

import "testing"

func TestMatchCommand_RecognizedShapes(t *testing.T) {
	tests := []struct {
		text string
		kind CommandKind
		args []string
	}{
		{"签到", KindCheckIn, nil},
		{"积分", KindPoints, nil},
		{"挖矿", KindActivity, []string{"挖矿"}},
		{"我的背包", KindActivity, []string{"我的背包"}},
		{"钓鱼", KindActivity, []string{"钓鱼"}},
		{"我的鱼篓", KindActivity, []string{"我的鱼篓"}},
		{"出售 鲤鱼", KindSell, []string{"出售", "鲤鱼"}},
		{"售出 金矿石", KindSell, []string{"售出", "金矿石"}},
		{"功能", KindHelp, []string{""}},
		{"功能 钓鱼", KindHelp, []string{"钓鱼"}},
		{"功能 ", KindHelp, []string{""}},
		{"领取积分补助", KindClaimSubsidy, nil},
		{"签到状态", KindCheckInStatus, nil},
		{"排行榜", KindLeaderboard, nil},
		{"打劫", KindRob, []string{""}},
		{"打劫[CQ:at,qq=42]", KindRob, []string{"[CQ:at,qq=42]"}},
		{"抽奖 100", KindLottery, []string{"100"}},
		{"转账 50", KindTransfer, []string{"50", ""}},
		{"转账 50[CQ:at,qq=7]", KindTransfer, []string{"50", "[CQ:at,qq=7]"}},
		{"@检查更新@", KindUpdateCheck, nil},
		{"#", KindGeneric, []string{""}},
		{"#菜单", KindGeneric, []string{"菜单"}},
		{"猜拳石头 10", KindRockPaperScissors, []string{"石头", "10"}},
		{"猜拳剪刀 1", KindRockPaperScissors, []string{"剪刀", "1"}},
		{"猜拳布 3", KindRockPaperScissors, []string{"布", "3"}},
		{"猜数字 42", KindGuessNumber, []string{"猜数字", "42"}},
		{"我猜 7", KindGuessNumber, []string{"我猜", "7"}},
	}

	for _, tt := range tests {
		cmd, ok := MatchCommand(tt.text)
		if !ok {
			t.Fatalf("MatchCommand(%q) did not match", tt.text)
		}
		if cmd.Kind != tt.kind {
			t.Fatalf("MatchCommand(%q).Kind = %v, want %v", tt.text, cmd.Kind, tt.kind)
		}
		if len(cmd.Args) != len(tt.args) {
			t.Fatalf("MatchCommand(%q).Args = %q, want %q", tt.text, cmd.Args, tt.args)
		}
		for i := range tt.args {
			if cmd.Args[i] != tt.args[i] {
				t.Fatalf("MatchCommand(%q).Args[%d] = %q, want %q", tt.text, i, cmd.Args[i], tt.args[i])
			}
		}
	}
}

func TestMatchCommand_RejectsNearMisses(t *testing.T) {
	rejected := []string{
		"",
		"hello",
		" 签到",
		"签到 ",
		"签到吧",
		"出售鲤鱼",
		"出售  鲤鱼",
		"出售 fish",
		"出售 鲤鱼1",
		"功能钓鱼",
		"抽奖",
		"抽奖 ",
		"抽奖 abc",
		"抽奖 １２",
		"转账 ",
		"转账 abc",
		"检查更新",
		"@检查更新",
		"猜拳 石头 10",
		"猜拳石头10",
		"猜数字",
		"我猜 七",
		"打劫\n你",
		"#菜单\n第二行",
		"功能 a\rb",
	}

	for _, text := range rejected {
		if cmd, ok := MatchCommand(text); ok {
			t.Fatalf("MatchCommand(%q) matched as %v, want no match", text, cmd.Kind)
		}
	}
}

func TestMatchCommand_PrefersFirstShape(t *testing.T) {
	cmd, ok := MatchCommand("签到状态")
	if !ok || cmd.Kind != KindCheckInStatus {
		t.Fatalf("MatchCommand(签到状态) = %v/%v, want check_in_status", cmd.Kind, ok)
	}
}

func TestCommandKindString(t *testing.T) {
	if KindGuessNumber.String() != "guess_number" {
		t.Fatalf("KindGuessNumber.String() = %q", KindGuessNumber.String())
	}
	if CommandKind(999).String() != "unknown" {
		t.Fatalf("unexpected name for unknown kind: %q", CommandKind(999).String())
	}
}
