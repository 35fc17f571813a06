package packet

import "fmt"

// CmdID identifies the operation a frame invokes. The set is closed: ids
// outside it are protocol errors, not no-ops. Values follow the client's
// protocol table.
type CmdID uint16

// System
const (
	CmdLoginRequest     CmdID = 1
	CmdReconnectRequest CmdID = 2
	CmdRename           CmdID = 3
	CmdGetServerTime    CmdID = 4
	CmdGetPlayerInfo    CmdID = 5
)

// Inventory and roster
const (
	CmdGetCurrencyList CmdID = 11
	CmdGetItemList     CmdID = 12
	CmdHeroInfoList    CmdID = 13
	CmdGetRedDotInfos  CmdID = 14
	CmdHeroRedDotRead  CmdID = 15
	CmdHeroTouch       CmdID = 16
)

// Player stats, bonuses and sign-in
const (
	CmdClientStatBaseInfo       CmdID = 21
	CmdUpdateClientStatBaseInfo CmdID = 22
	CmdGetAssistBonus           CmdID = 23
	CmdSignIn                   CmdID = 24
	CmdGetSignInInfo            CmdID = 25
)

// Summon
const (
	CmdGetSummonInfo          CmdID = 31
	CmdSummon                 CmdID = 32
	CmdSummonQueryToken       CmdID = 33
	CmdChooseEnhancedPoolHero CmdID = 34
)

// Dungeon (known to the protocol, not served by this runtime)
const (
	CmdGetDungeon   CmdID = 41
	CmdStartDungeon CmdID = 42
)

// Server pushes
const (
	CmdUpdateRedDotPush   CmdID = 101
	CmdItemChangePush     CmdID = 102
	CmdCurrencyChangePush CmdID = 103
	CmdMaterialChangePush CmdID = 104
	CmdStatInfoPush       CmdID = 105
	CmdEndActivityPush    CmdID = 106
)

var cmdNames = map[CmdID]string{
	CmdLoginRequest:             "LoginRequest",
	CmdReconnectRequest:         "ReconnectRequest",
	CmdRename:                   "Rename",
	CmdGetServerTime:            "GetServerTime",
	CmdGetPlayerInfo:            "GetPlayerInfo",
	CmdGetCurrencyList:          "GetCurrencyList",
	CmdGetItemList:              "GetItemList",
	CmdHeroInfoList:             "HeroInfoList",
	CmdGetRedDotInfos:           "GetRedDotInfos",
	CmdHeroRedDotRead:           "HeroRedDotRead",
	CmdHeroTouch:                "HeroTouch",
	CmdClientStatBaseInfo:       "ClientStatBaseInfo",
	CmdUpdateClientStatBaseInfo: "UpdateClientStatBaseInfo",
	CmdGetAssistBonus:           "GetAssistBonus",
	CmdSignIn:                   "SignIn",
	CmdGetSignInInfo:            "GetSignInInfo",
	CmdGetSummonInfo:            "GetSummonInfo",
	CmdSummon:                   "Summon",
	CmdSummonQueryToken:         "SummonQueryToken",
	CmdChooseEnhancedPoolHero:   "ChooseEnhancedPoolHero",
	CmdGetDungeon:               "GetDungeon",
	CmdStartDungeon:             "StartDungeon",
	CmdUpdateRedDotPush:         "UpdateRedDotPush",
	CmdItemChangePush:           "ItemChangePush",
	CmdCurrencyChangePush:       "CurrencyChangePush",
	CmdMaterialChangePush:       "MaterialChangePush",
	CmdStatInfoPush:             "StatInfoPush",
	CmdEndActivityPush:          "EndActivityPush",
}

// LookupCmd interprets a raw wire id as a member of the enumeration.
func LookupCmd(id uint16) (CmdID, bool) {
	c := CmdID(id)
	_, ok := cmdNames[c]
	return c, ok
}

// AllCmds returns every member of the enumeration.
func AllCmds() []CmdID {
	out := make([]CmdID, 0, len(cmdNames))
	for c := range cmdNames {
		out = append(out, c)
	}
	return out
}

func (c CmdID) String() string {
	if name, ok := cmdNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Unknown(%d)", uint16(c))
}
